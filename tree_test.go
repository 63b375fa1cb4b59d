package affixtree

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func bothDirections() []*Tree[string] {
	return []*Tree[string]{NewPrefix[string](), NewSuffix[string]()}
}

func Test_Empty_Tree(t *testing.T) {
	for _, tree := range bothDirections() {
		Convey("An empty "+tree.Direction().String()+" tree finds nothing", t, func() {
			_, found := tree.Find("test")
			So(found, ShouldBeFalse)

			_, found = tree.Find("")
			So(found, ShouldBeFalse)

			So(tree.Len(), ShouldEqual, 0)
		})
	}
}

func Test_Invalid_Key(t *testing.T) {
	for _, tree := range bothDirections() {
		Convey("Empty key is rejected in a "+tree.Direction().String()+" tree", t, func() {
			err := tree.Insert("", "value")
			So(err, ShouldHaveSameTypeAs, InvalidKeyError{})
			So(errors.Is(err, ErrInvalidKey), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "key is empty")
			So(tree.Len(), ShouldEqual, 0)
		})
	}
}

func Test_Duplicate_Key(t *testing.T) {
	for _, tree := range bothDirections() {
		Convey("Same key twice is rejected in a "+tree.Direction().String()+" tree", t, func() {
			So(tree.Insert("key", "value"), ShouldBeNil)

			err := tree.Insert("key", "value")
			So(errors.Is(err, ErrDuplicateKey), ShouldBeTrue)
			So(err.Error(), ShouldEqual, `duplicate key "key" for value: value`)

			var dup DuplicateKeyError
			So(errors.As(err, &dup), ShouldBeTrue)
			So(dup.Key, ShouldEqual, "key")
			So(dup.Value, ShouldEqual, "value")

			Convey("the first value is kept", func() {
				So(tree.Insert("key", "other"), ShouldNotBeNil)
				v, found := tree.Find("key")
				So(found, ShouldBeTrue)
				So(v, ShouldEqual, "value")
				So(tree.Len(), ShouldEqual, 1)
			})
		})
	}
}

func Test_Round_Trip(t *testing.T) {
	Convey("Inserted keys are found exactly", t, func() {
		for _, key := range []string{"a", "abc", "tar.gz", "日本語", "/api/v1/"} {
			for _, tree := range bothDirections() {
				So(tree.Insert(key, key+"!"), ShouldBeNil)
				v, found := tree.Find(key)
				So(found, ShouldBeTrue)
				So(v, ShouldEqual, key+"!")
			}
		}
	})

	Convey("Zero values are stored values", t, func() {
		tree := NewPrefix[int]()
		So(tree.Insert("zero", 0), ShouldBeNil)

		v, found := tree.Find("zero")
		So(found, ShouldBeTrue)
		So(v, ShouldEqual, 0)

		So(tree.Insert("zero", 1), ShouldNotBeNil)
	})
}

func Test_Prefix_Tree(t *testing.T) {
	Convey("Shorter prefix should not be found", t, func() {
		tree := NewPrefix[int]()
		So(tree.Insert("prefix1", 1), ShouldBeNil)
		So(tree.Insert("prefix2", 2), ShouldBeNil)

		_, found := tree.Find("prefix")
		So(found, ShouldBeFalse)
	})

	Convey("Exact prefix should be found", t, func() {
		tree := NewPrefix[int]()
		So(tree.Insert("prefix1-1", 0), ShouldBeNil)
		So(tree.Insert("prefix1", 1), ShouldBeNil)
		So(tree.Insert("prefix2", 2), ShouldBeNil)
		So(tree.Insert("prefix1-t", 3), ShouldBeNil)

		v, found := tree.Find("prefix1")
		So(found, ShouldBeTrue)
		So(v, ShouldEqual, 1)
		So(tree.Len(), ShouldEqual, 4)
	})

	Convey("Longer prefix should be found", t, func() {
		tree := NewPrefix[int]()
		So(tree.Insert("prefix1", 1), ShouldBeNil)
		So(tree.Insert("prefix2", 2), ShouldBeNil)
		So(tree.Insert("prefix1-t", 3), ShouldBeNil)

		v, found := tree.Find("prefix1")
		So(found, ShouldBeTrue)
		So(v, ShouldEqual, 1)

		v, found = tree.Find("prefix1-")
		So(found, ShouldBeTrue)
		So(v, ShouldEqual, 1)

		v, found = tree.Find("prefix1-test")
		So(found, ShouldBeTrue)
		So(v, ShouldEqual, 3)

		_, found = tree.Find("xprefix1")
		So(found, ShouldBeFalse)
	})
}

func Test_Suffix_Tree(t *testing.T) {
	Convey("Shorter suffix should not be found", t, func() {
		tree := NewSuffix[int]()
		So(tree.Insert("1suffix", 1), ShouldBeNil)
		So(tree.Insert("2suffix", 2), ShouldBeNil)

		_, found := tree.Find("suffix")
		So(found, ShouldBeFalse)
	})

	Convey("Exact suffix should be found", t, func() {
		tree := NewSuffix[int]()
		So(tree.Insert("1-1suffix", 0), ShouldBeNil)
		So(tree.Insert("1suffix", 1), ShouldBeNil)
		So(tree.Insert("2suffix", 2), ShouldBeNil)
		So(tree.Insert("t-1suffix", 3), ShouldBeNil)

		v, found := tree.Find("1suffix")
		So(found, ShouldBeTrue)
		So(v, ShouldEqual, 1)
	})

	Convey("Longer suffix should be found", t, func() {
		tree := NewSuffix[int]()
		So(tree.Insert("1suffix", 1), ShouldBeNil)
		So(tree.Insert("2suffix", 2), ShouldBeNil)
		So(tree.Insert("t-1suffix", 3), ShouldBeNil)

		v, found := tree.Find("-1suffix")
		So(found, ShouldBeTrue)
		So(v, ShouldEqual, 1)

		v, found = tree.Find("test-1suffix")
		So(found, ShouldBeTrue)
		So(v, ShouldEqual, 3)

		_, found = tree.Find("1suffixx")
		So(found, ShouldBeFalse)
	})

	Convey("File extensions resolve to the longest suffix", t, func() {
		tree := NewSuffix[string]()
		So(tree.Insert(".gz", "gzip"), ShouldBeNil)
		So(tree.Insert(".tar.gz", "tarball"), ShouldBeNil)

		v, _ := tree.Find("backup.tar.gz")
		So(v, ShouldEqual, "tarball")
		v, _ = tree.Find("access.log.gz")
		So(v, ShouldEqual, "gzip")
	})
}

func Test_Code_Points(t *testing.T) {
	Convey("Multi-byte characters are single steps", t, func() {
		prefix := NewPrefix[string]()
		So(prefix.Insert("日本", "ja"), ShouldBeNil)
		v, found := prefix.Find("日本語")
		So(found, ShouldBeTrue)
		So(v, ShouldEqual, "ja")

		suffix := NewSuffix[string]()
		So(suffix.Insert("語", "word"), ShouldBeNil)
		v, found = suffix.Find("日本語")
		So(found, ShouldBeTrue)
		So(v, ShouldEqual, "word")

		_, found = suffix.Find("日本")
		So(found, ShouldBeFalse)
	})
}

func Test_Failed_Insert_Keeps_Path(t *testing.T) {
	Convey("A rejected duplicate leaves lookups unchanged", t, func() {
		tree := NewSuffix[int]()
		So(tree.Insert("cn", 1), ShouldBeNil)
		So(tree.Insert("cn", 2), ShouldNotBeNil)
		So(tree.Insert("a.cn", 3), ShouldBeNil)

		v, _ := tree.Find("b.cn")
		So(v, ShouldEqual, 1)
		v, _ = tree.Find("x.a.cn")
		So(v, ShouldEqual, 3)
	})
}

func TestDirectionString(t *testing.T) {
	Convey("Directions have names", t, func() {
		So(Forward.String(), ShouldEqual, "forward")
		So(Backward.String(), ShouldEqual, "backward")
		So(Direction(7).String(), ShouldEqual, "unknown")
		So(New[int](Backward).Direction(), ShouldEqual, Backward)
	})
}

func Test_Invalid_UTF8(t *testing.T) {
	for _, tree := range bothDirections() {
		Convey("Invalid bytes are distinct keys in a "+tree.Direction().String()+" tree", t, func() {
			So(tree.Insert("a\xff", "ff"), ShouldBeNil)
			So(tree.Insert("a\xfe", "fe"), ShouldBeNil)
			So(tree.Insert("a\uFFFD", "replacement"), ShouldBeNil)

			v, found := tree.Find("a\xff")
			So(found, ShouldBeTrue)
			So(v, ShouldEqual, "ff")

			v, _ = tree.Find("a\xfe")
			So(v, ShouldEqual, "fe")

			v, _ = tree.Find("a\uFFFD")
			So(v, ShouldEqual, "replacement")

			So(tree.Insert("a\xff", "again"), ShouldNotBeNil)
		})
	}

	Convey("Truncated sequences match byte by byte", t, func() {
		prefix := NewPrefix[string]()
		So(prefix.Insert("\xe6\x97", "broken"), ShouldBeNil)

		v, found := prefix.Find("\xe6\x97x")
		So(found, ShouldBeTrue)
		So(v, ShouldEqual, "broken")

		_, found = prefix.Find("日")
		So(found, ShouldBeFalse)
	})
}

func countNodes[T any](t *Tree[T]) int {
	n := 1
	for _, c := range t.children {
		n += countNodes(c)
	}
	return n
}

func Test_Node_Count(t *testing.T) {
	for _, tree := range bothDirections() {
		Convey("Only inserted paths create nodes in a "+tree.Direction().String()+" tree", t, func() {
			So(tree.Insert("prefix1", "1"), ShouldBeNil)
			So(tree.Insert("prefix2", "2"), ShouldBeNil)
			nodes := countNodes(tree)

			tree.Find("prefixZZZ")
			tree.Find("ZZZprefix1")
			tree.Find("")
			So(countNodes(tree), ShouldEqual, nodes)

			So(tree.Insert("", "empty"), ShouldNotBeNil)
			So(countNodes(tree), ShouldEqual, nodes)

			So(tree.Insert("prefix1", "again"), ShouldNotBeNil)
			So(countNodes(tree), ShouldEqual, nodes)
		})
	}

	Convey("Node count equals distinct key positions", t, func() {
		tree := NewPrefix[int]()
		So(tree.Insert("ab", 1), ShouldBeNil)
		So(tree.Insert("ac", 2), ShouldBeNil)
		So(tree.Insert("abd", 3), ShouldBeNil)
		// root, a, b, c, d
		So(countNodes(tree), ShouldEqual, 5)
	})
}
