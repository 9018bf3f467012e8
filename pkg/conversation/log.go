// Package conversation provides a linear, branchable conversation log.
//
// A Log is an ordered sequence of role-tagged turns. Named bookmarks point
// into that sequence, and slicing a log at a bookmark forks the turns after it
// into a new sibling log that is kept in an archive named after the bookmark.
// Every fork stays reachable by bookmark name, and the full state round-trips
// through JSON or YAML.
//
// Log operations are synchronous and in-memory; a Log is not safe for
// concurrent mutation.
package conversation

import (
	"sort"

	"github.com/go-go-golems/parley/pkg/turns"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Log struct {
	ID uuid.UUID

	turns     []turns.Turn
	roles     turns.RoleNames
	bookmarks bookmarkList
	archives  map[string]*Archive
}

type Option func(*Log)

func WithRoleNames(roles turns.RoleNames) Option {
	return func(l *Log) {
		l.roles = roles
	}
}

func WithUserRoleName(name string) Option {
	return func(l *Log) {
		l.roles.User = name
	}
}

func WithAssistantRoleName(name string) Option {
	return func(l *Log) {
		l.roles.Assistant = name
	}
}

func WithID(id uuid.UUID) Option {
	return func(l *Log) {
		l.ID = id
	}
}

// New creates an empty log. Invalid role name options fall back to the
// defaults; use NewFromTurns to get an error instead.
func New(options ...Option) *Log {
	l, err := NewFromTurns(nil, options...)
	if err != nil {
		log.Warn().Err(err).Msg("invalid role names, using defaults")
		l, _ = NewFromTurns(nil)
	}
	return l
}

// NewFromTurns creates a log holding a copy of initial. Every turn must use
// one of the log's role labels.
func NewFromTurns(initial []turns.Turn, options ...Option) (*Log, error) {
	ret := &Log{
		roles:    turns.DefaultRoleNames(),
		archives: map[string]*Archive{},
	}
	for _, option := range options {
		option(ret)
	}
	if ret.ID == uuid.Nil {
		ret.ID = uuid.New()
	}

	if err := ret.roles.Valid(); err != nil {
		return nil, err
	}
	if err := ret.roles.Validate(initial); err != nil {
		return nil, err
	}
	ret.turns = turns.Clone(initial)

	return ret, nil
}

// Spawn creates a new log with the same role names.
func (l *Log) Spawn(initial []turns.Turn) (*Log, error) {
	return NewFromTurns(initial, WithRoleNames(l.roles))
}

// spawnTrusted skips validation for turns that already passed it.
func (l *Log) spawnTrusted(initial []turns.Turn) *Log {
	return &Log{
		ID:       uuid.New(),
		turns:    initial,
		roles:    l.roles,
		archives: map[string]*Archive{},
	}
}

type appendConfig struct {
	merge bool
}

type AppendOption func(*appendConfig)

// WithoutMerge always adds a new turn, even if the last turn has the same role.
func WithoutMerge() AppendOption {
	return func(c *appendConfig) {
		c.merge = false
	}
}

// WithMerge sets whether a turn with the same role as the last one replaces
// its content.
func WithMerge(merge bool) AppendOption {
	return func(c *appendConfig) {
		c.merge = merge
	}
}

// Append adds a turn for role. If the last turn has the same role, its content
// is replaced instead, unless WithoutMerge is given. Roles other than system,
// user and assistant are logged and dropped.
func (l *Log) Append(role turns.Role, content string, options ...AppendOption) *Log {
	cfg := appendConfig{merge: true}
	for _, option := range options {
		option(&cfg)
	}

	label, ok := l.roles.Label(role)
	if !ok {
		log.Warn().
			Str("log_id", l.ID.String()).
			Str("role", string(role)).
			Msg("dropping turn with unknown role")
		return l
	}
	if n := len(l.turns); cfg.merge && n > 0 && l.turns[n-1].Role == label {
		l.turns[n-1].Content = content
		return l
	}
	l.turns = append(l.turns, turns.Turn{Role: label, Content: content})
	return l
}

func (l *Log) System(content string, options ...AppendOption) *Log {
	return l.Append(turns.RoleSystem, content, options...)
}

func (l *Log) User(content string, options ...AppendOption) *Log {
	return l.Append(turns.RoleUser, content, options...)
}

func (l *Log) Assistant(content string, options ...AppendOption) *Log {
	return l.Append(turns.RoleAssistant, content, options...)
}

// Replace overwrites the content of the last turn.
func (l *Log) Replace(content string) error {
	return l.ReplaceAt(-1, content)
}

// ReplaceAt overwrites the content of the turn at index. Negative indices
// count from the end.
func (l *Log) ReplaceAt(index int, content string) error {
	if len(l.turns) == 0 {
		return errors.Wrap(ErrEmptyLog, "cannot replace content")
	}
	i, err := l.resolveIndex(index)
	if err != nil {
		return err
	}
	l.turns[i].Content = content
	return nil
}

// Insert appends ts at the end of the log.
func (l *Log) Insert(ts []turns.Turn) error {
	return l.InsertAt(len(l.turns), ts)
}

// InsertLog appends the turns of other. other is left untouched.
func (l *Log) InsertLog(other *Log) error {
	return l.Insert(other.turns)
}

// InsertAt splices ts in before position at. Negative positions count from
// the end and out-of-range positions are clamped, like slice bounds.
func (l *Log) InsertAt(at int, ts []turns.Turn) error {
	if len(ts) == 0 {
		return nil
	}
	if err := l.roles.Validate(ts); err != nil {
		return err
	}

	at = clampSliceIndex(at, len(l.turns))
	out := make([]turns.Turn, 0, len(l.turns)+len(ts))
	out = append(out, l.turns[:at]...)
	out = append(out, ts...)
	out = append(out, l.turns[at:]...)
	l.turns = out

	// bookmarks keep pointing at the same turns
	for i := range l.bookmarks {
		if l.bookmarks[i].Index >= at {
			l.bookmarks[i].Index += len(ts)
		}
	}
	return nil
}

// Delete removes the last turn.
func (l *Log) Delete() *Log {
	return l.DeleteRange(-1, len(l.turns))
}

// DeleteFrom removes every turn from begin to the end.
func (l *Log) DeleteFrom(begin int) *Log {
	return l.DeleteRange(begin, len(l.turns))
}

// DeleteRange removes the half-open range [begin, end). Bounds follow slice
// semantics: negative values count from the end and are clamped.
func (l *Log) DeleteRange(begin, end int) *Log {
	n := len(l.turns)
	begin = clampSliceIndex(begin, n)
	end = clampSliceIndex(end, n)
	if end <= begin {
		return l
	}
	out := make([]turns.Turn, 0, n-(end-begin))
	out = append(out, l.turns[:begin]...)
	out = append(out, l.turns[end:]...)
	l.turns = out

	// bookmarks on deleted turns are dropped, later ones shift down
	kept := l.bookmarks[:0]
	for _, bm := range l.bookmarks {
		switch {
		case bm.Index < begin:
		case bm.Index < end:
			continue
		default:
			bm.Index -= end - begin
		}
		kept = append(kept, bm)
	}
	l.bookmarks = kept
	return l
}

// Bookmark registers name at the last turn.
func (l *Log) Bookmark(name string) error {
	return l.BookmarkAt(name, -1)
}

// BookmarkAt registers name at index. Negative indices count from the end.
func (l *Log) BookmarkAt(name string, at int) error {
	i, err := l.resolveIndex(at)
	if err != nil {
		return err
	}
	l.bookmarks.insert(Bookmark{Name: name, Index: i})
	return nil
}

// Bookmarks returns a copy of the bookmarks, sorted by index.
func (l *Log) Bookmarks() []Bookmark {
	return l.bookmarks.clone()
}

// Slice cuts the log at the first bookmark named name and returns the new
// sibling log holding the turns after it. The sibling is also added to the
// archive named after the bookmark.
func (l *Log) Slice(name string) (*Log, error) {
	pos, ok := l.bookmarks.find(name)
	if !ok {
		return nil, errors.Wrapf(ErrBookmarkNotFound, "bookmark %q", name)
	}
	return l.sliceAt(pos), nil
}

// SliceAt is Slice for the bookmark at position in Bookmarks(). Negative
// positions count from the end.
func (l *Log) SliceAt(position int) (*Log, error) {
	n := len(l.bookmarks)
	pos := position
	if pos < 0 {
		pos += n
	}
	if pos < 0 || pos >= n {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "bookmark position %d (bookmarks=%d)", position, n)
	}
	return l.sliceAt(pos), nil
}

func (l *Log) sliceAt(pos int) *Log {
	cut := l.bookmarks[pos]
	if cut.Index >= len(l.turns) {
		cut.Index = len(l.turns) - 1
	}

	trailing := turns.Clone(l.turns[cut.Index+1:])
	l.turns = turns.Clone(l.turns[:cut.Index+1])
	sibling := l.spawnTrusted(trailing)

	kept := make(bookmarkList, 0, len(l.bookmarks))
	for _, bm := range l.bookmarks {
		if bm.Index <= cut.Index {
			kept = append(kept, bm)
			continue
		}
		sibling.bookmarks.insert(Bookmark{Name: bm.Name, Index: bm.Index - cut.Index - 1})
		if bm.Name == cut.Name {
			continue
		}
		if a, ok := l.archives[bm.Name]; ok {
			delete(l.archives, bm.Name)
			a.origin = sibling
			sibling.archives[bm.Name] = a
		}
	}
	l.bookmarks = kept

	a, ok := l.archives[cut.Name]
	if !ok {
		a = newArchive(cut.Name, l)
		l.archives[cut.Name] = a
	}
	a.add(sibling)

	log.Trace().
		Str("log_id", l.ID.String()).
		Str("sibling_id", sibling.ID.String()).
		Str("bookmark", cut.Name).
		Int("index", cut.Index).
		Int("kept", len(l.turns)).
		Int("moved", len(sibling.turns)).
		Int("archive_size", a.Len()).
		Msg("sliced conversation log")

	return sibling
}

// Archive returns the archive named name.
func (l *Log) Archive(name string) (*Archive, bool) {
	a, ok := l.archives[name]
	return a, ok
}

// ArchiveNames returns the archive names in lexical order.
func (l *Log) ArchiveNames() []string {
	names := make([]string, 0, len(l.archives))
	for name := range l.archives {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (l *Log) Len() int {
	return len(l.turns)
}

// Turns returns a copy of the turn sequence.
func (l *Log) Turns() []turns.Turn {
	return turns.Clone(l.turns)
}

func (l *Log) RoleNames() turns.RoleNames {
	return l.roles
}

// Content returns the content at index, or false if there is no such turn.
func (l *Log) Content(index int) (string, bool) {
	i, err := l.resolveIndex(index)
	if err != nil {
		return "", false
	}
	return l.turns[i].Content, true
}

// Role returns the role label at index, or false if there is no such turn.
func (l *Log) Role(index int) (string, bool) {
	i, err := l.resolveIndex(index)
	if err != nil {
		return "", false
	}
	return l.turns[i].Role, true
}

// Contents returns the content of every turn matching filter. A nil filter
// matches everything.
func (l *Log) Contents(filter func(turns.Turn) bool) []string {
	ret := []string{}
	for _, t := range l.turns {
		if filter == nil || filter(t) {
			ret = append(ret, t.Content)
		}
	}
	return ret
}

func (l *Log) roleContents(role turns.Role) []string {
	label, ok := l.roles.Label(role)
	if !ok {
		return nil
	}
	return l.Contents(func(t turns.Turn) bool {
		return t.Role == label
	})
}

func (l *Log) UserContents() []string {
	return l.roleContents(turns.RoleUser)
}

func (l *Log) AssistantContents() []string {
	return l.roleContents(turns.RoleAssistant)
}

func (l *Log) SystemContents() []string {
	return l.roleContents(turns.RoleSystem)
}

func (l *Log) resolveIndex(index int) (int, error) {
	n := len(l.turns)
	i := index
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, errors.Wrapf(ErrIndexOutOfRange, "index %d (length=%d)", index, n)
	}
	return i, nil
}

func clampSliceIndex(i, n int) int {
	if i < 0 {
		i += n
		if i < 0 {
			i = 0
		}
	}
	if i > n {
		i = n
	}
	return i
}
