package conversation

// Archive collects the sibling logs forked at bookmarks sharing one name.
//
// The archive's forked logs are owned by the archive. The origin is a
// back-reference to the log that currently holds the bookmark; it is not
// serialized and is rewired when the archive moves to a sliced sibling.
type Archive struct {
	Name string
	Logs []*Log

	origin *Log
}

func newArchive(name string, origin *Log) *Archive {
	return &Archive{
		Name:   name,
		origin: origin,
	}
}

// Origin returns the log that owns the bookmark this archive is named after.
func (a *Archive) Origin() *Log {
	return a.origin
}

func (a *Archive) Len() int {
	return len(a.Logs)
}

func (a *Archive) add(l *Log) {
	a.Logs = append(a.Logs, l)
}
