package conversation

import "sort"

// Bookmark is a named index into a log's turn sequence.
type Bookmark struct {
	Name  string `json:"name" yaml:"name"`
	Index int    `json:"index" yaml:"index"`
}

// bookmarkList is kept sorted by Index. Bookmarks sharing an index keep their
// insertion order.
type bookmarkList []Bookmark

// insert places b after every bookmark whose index is <= b.Index.
func (bl *bookmarkList) insert(b Bookmark) {
	list := *bl
	i := sort.Search(len(list), func(i int) bool {
		return list[i].Index > b.Index
	})
	list = append(list, Bookmark{})
	copy(list[i+1:], list[i:])
	list[i] = b
	*bl = list
}

// find returns the position of the first bookmark named name.
func (bl bookmarkList) find(name string) (int, bool) {
	for i, b := range bl {
		if b.Name == name {
			return i, true
		}
	}
	return -1, false
}

func (bl bookmarkList) clone() []Bookmark {
	out := make([]Bookmark, len(bl))
	copy(out, bl)
	return out
}
