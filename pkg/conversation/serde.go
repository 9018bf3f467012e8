package conversation

import (
	_ "embed"
	"encoding/json"
	"strings"
	"sync"

	"github.com/go-go-golems/parley/pkg/turns"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// SerializedLog is the exported form of a Log. Archives map a bookmark name
// to the serialized sibling logs forked at it, recursively.
type SerializedLog struct {
	ID        string                      `json:"id,omitempty" yaml:"id,omitempty"`
	Turns     []turns.Turn                `json:"turns" yaml:"turns"`
	Roles     turns.RoleNames             `json:"roles" yaml:"roles"`
	Bookmarks []Bookmark                  `json:"bookmarks" yaml:"bookmarks"`
	Archives  map[string][]*SerializedLog `json:"archives" yaml:"archives"`
}

//go:embed log.schema.json
var logSchemaJSON []byte

var (
	logSchemaOnce sync.Once
	logSchema     *gojsonschema.Schema
	logSchemaErr  error
)

func loadLogSchema() (*gojsonschema.Schema, error) {
	logSchemaOnce.Do(func() {
		logSchema, logSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(logSchemaJSON))
	})
	return logSchema, logSchemaErr
}

// ValidateJSON checks data against the serialized log schema.
func ValidateJSON(data []byte) error {
	schema, err := loadLogSchema()
	if err != nil {
		return errors.Wrap(err, "could not load conversation log schema")
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return errors.Wrapf(ErrInvalidSerializedLog, "%v", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return errors.Wrap(ErrInvalidSerializedLog, strings.Join(msgs, "; "))
	}
	return nil
}

// Export returns the full state of the log, archives included.
func (l *Log) Export() *SerializedLog {
	ret := &SerializedLog{
		ID:        l.ID.String(),
		Turns:     turns.Clone(l.turns),
		Roles:     l.roles,
		Bookmarks: l.bookmarks.clone(),
		Archives:  make(map[string][]*SerializedLog, len(l.archives)),
	}
	if ret.Turns == nil {
		ret.Turns = []turns.Turn{}
	}
	for name, a := range l.archives {
		logs := make([]*SerializedLog, 0, len(a.Logs))
		for _, forked := range a.Logs {
			logs = append(logs, forked.Export())
		}
		ret.Archives[name] = logs
	}
	return ret
}

// Import rebuilds a log from its exported form, validating roles and
// bookmark positions.
func Import(s *SerializedLog) (*Log, error) {
	l := &Log{}
	if err := l.load(s); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Log) load(s *SerializedLog) error {
	if s == nil {
		return errors.Wrap(ErrInvalidSerializedLog, "nil log")
	}

	id := uuid.New()
	if s.ID != "" {
		parsed, err := uuid.Parse(s.ID)
		if err != nil {
			return errors.Wrapf(ErrInvalidSerializedLog, "invalid id %q: %v", s.ID, err)
		}
		id = parsed
	}

	fresh, err := NewFromTurns(s.Turns, WithRoleNames(s.Roles), WithID(id))
	if err != nil {
		return err
	}

	for _, bm := range s.Bookmarks {
		if bm.Index < 0 {
			return errors.Wrapf(ErrIndexOutOfRange, "bookmark %q index %d", bm.Name, bm.Index)
		}
		if err := fresh.BookmarkAt(bm.Name, bm.Index); err != nil {
			return errors.Wrapf(err, "bookmark %q", bm.Name)
		}
	}

	*l = *fresh

	for name, logs := range s.Archives {
		a := newArchive(name, l)
		for i, sl := range logs {
			forked, err := Import(sl)
			if err != nil {
				return errors.Wrapf(err, "archive %q log %d", name, i)
			}
			a.add(forked)
		}
		l.archives[name] = a
	}

	return nil
}

func (l *Log) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Export())
}

// UnmarshalJSON validates data against the log schema before importing it.
func (l *Log) UnmarshalJSON(data []byte) error {
	if err := ValidateJSON(data); err != nil {
		return err
	}
	var s SerializedLog
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrapf(ErrInvalidSerializedLog, "%v", err)
	}
	return l.load(&s)
}

func (l *Log) MarshalYAML() (interface{}, error) {
	return l.Export(), nil
}

func (l *Log) UnmarshalYAML(value *yaml.Node) error {
	var s SerializedLog
	if err := value.Decode(&s); err != nil {
		return errors.Wrapf(ErrInvalidSerializedLog, "%v", err)
	}
	return l.load(&s)
}

func FromJSON(data []byte) (*Log, error) {
	l := &Log{}
	if err := l.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return l, nil
}

func FromYAML(data []byte) (*Log, error) {
	l := &Log{}
	if err := yaml.Unmarshal(data, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Log) ToYAML() ([]byte, error) {
	return yaml.Marshal(l)
}
