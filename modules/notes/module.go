// Package notes keeps a list of heterogeneous notes plus free-form
// metadata. It exercises polymorphic state: each note is one of several
// registered Note variants, and metadata values are arbitrary.
package notes

import (
	"fmt"
	"slices"

	"github.com/specialistvlad/burststate/internal/codec"
	"github.com/specialistvlad/burststate/internal/module"
	"github.com/specialistvlad/burststate/internal/registry"
)

const ID = "notes"

// Note is the sealed family of note kinds.
type Note interface {
	NoteID() string
}

// Text is a free-text note.
type Text struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

// Checklist is a note made of items that can be checked off.
type Checklist struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Items []Item `json:"items"`
}

type Item struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

func (n Text) NoteID() string      { return n.ID }
func (n Checklist) NoteID() string { return n.ID }

// State is the module state. Meta values are decoded loosely: numbers come
// back as float64.
type State struct {
	Notes []Note         `json:"notes"`
	Meta  map[string]any `json:"meta,omitempty"`
}

// Action is the sealed family of notes actions.
type Action interface{ isNotesAction() }

type AddNote struct {
	Note Note `json:"note"`
}

type RemoveNote struct {
	ID string `json:"id"`
}

type CheckItem struct {
	NoteID string `json:"note_id"`
	Index  int    `json:"index"`
	Done   bool   `json:"done"`
}

type SetMeta struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func (AddNote) isNotesAction()    {}
func (RemoveNote) isNotesAction() {}
func (CheckItem) isNotesAction()  {}
func (SetMeta) isNotesAction()    {}

// Reduce applies a to s. State is never mutated in place.
func Reduce(s State, a Action) (State, error) {
	switch a := a.(type) {
	case AddNote:
		if a.Note == nil {
			return s, fmt.Errorf("add note: note is nil")
		}
		if s.index(a.Note.NoteID()) >= 0 {
			return s, fmt.Errorf("add note: id '%s' already exists", a.Note.NoteID())
		}
		s.Notes = append(slices.Clone(s.Notes), a.Note)
		return s, nil

	case RemoveNote:
		i := s.index(a.ID)
		if i < 0 {
			return s, nil
		}
		s.Notes = slices.Delete(slices.Clone(s.Notes), i, i+1)
		return s, nil

	case CheckItem:
		i := s.index(a.NoteID)
		if i < 0 {
			return s, fmt.Errorf("check item: no note '%s'", a.NoteID)
		}
		list, ok := s.Notes[i].(Checklist)
		if !ok {
			return s, fmt.Errorf("check item: note '%s' is not a checklist", a.NoteID)
		}
		if a.Index < 0 || a.Index >= len(list.Items) {
			return s, fmt.Errorf("check item: index %d out of range for note '%s'", a.Index, a.NoteID)
		}
		list.Items = slices.Clone(list.Items)
		list.Items[a.Index].Done = a.Done
		s.Notes = slices.Clone(s.Notes)
		s.Notes[i] = list
		return s, nil

	case SetMeta:
		meta := make(map[string]any, len(s.Meta)+1)
		for k, v := range s.Meta {
			meta[k] = v
		}
		if a.Value == nil {
			delete(meta, a.Key)
		} else {
			meta[a.Key] = a.Value
		}
		s.Meta = meta
		return s, nil
	}
	return s, nil
}

func (s State) index(id string) int {
	return slices.IndexFunc(s.Notes, func(n Note) bool { return n.NoteID() == id })
}

// Definition returns the notes module definition.
func Definition() *module.Definition {
	return module.New(ID, State{}, Reduce,
		module.WithTypes(
			module.Family[Note](
				codec.V[Text]("notes.Text"),
				codec.V[Checklist]("notes.Checklist"),
			),
			module.Family[Action](
				codec.V[AddNote]("notes.AddNote"),
				codec.V[RemoveNote]("notes.RemoveNote"),
				codec.V[CheckItem]("notes.CheckItem"),
				codec.V[SetMeta]("notes.SetMeta"),
			),
		),
	)
}

// Module implements the registry.Module interface for this package.
type Module struct{}

func (m *Module) Register(r *registry.Registry) {
	r.RegisterModule(Definition())
}
