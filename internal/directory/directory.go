package directory

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/devaloi/parley/internal/domain"
	"github.com/devaloi/parley/internal/state"
)

// MaxTitleLength bounds a chatroom title, in characters. It must match the
// max rule on createRequest.
const MaxTitleLength = 120

var validate = validator.New(validator.WithRequiredStructEnabled())

type createRequest struct {
	Title string `validate:"required,max=120"`
}

// Directory creates, lists and deletes chatrooms.
type Directory struct {
	state *state.Container
	log   *slog.Logger
}

// New creates a Directory over the shared state container.
func New(c *state.Container, log *slog.Logger) *Directory {
	return &Directory{state: c, log: log}
}

// Create adds a chatroom with the trimmed title at the end of the directory.
func (d *Directory) Create(title string) (domain.Chatroom, error) {
	req := createRequest{Title: strings.TrimSpace(title)}
	if err := validate.Struct(req); err != nil {
		return domain.Chatroom{}, titleError(err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return domain.Chatroom{}, fmt.Errorf("chatroom id: %w", err)
	}
	room := domain.Chatroom{ID: id.String(), Title: req.Title}

	err = d.state.Update(func(s *state.State) (state.Dirty, error) {
		s.Chatrooms = append(s.Chatrooms, room)
		return state.DirtyChatrooms, nil
	})
	if err != nil {
		return domain.Chatroom{}, err
	}
	d.log.Debug("Chatroom created", "chatroom", room.ID, "title", room.Title)
	return room, nil
}

// List returns the chatrooms whose title contains filter, ignoring case.
// An empty filter returns every chatroom. Directory order is preserved.
func (d *Directory) List(filter string) []domain.Chatroom {
	needle := strings.ToLower(filter)
	var rooms []domain.Chatroom
	d.state.View(func(s *state.State) {
		rooms = lo.Filter(s.Chatrooms, func(r domain.Chatroom, _ int) bool {
			return strings.Contains(strings.ToLower(r.Title), needle)
		})
	})
	return rooms
}

// Get returns the chatroom with id.
func (d *Directory) Get(id string) (domain.Chatroom, error) {
	var (
		room  domain.Chatroom
		found bool
	)
	d.state.View(func(s *state.State) {
		if i := s.RoomIndex(id); i >= 0 {
			room, found = s.Chatrooms[i], true
		}
	})
	if !found {
		return domain.Chatroom{}, domain.RoomNotFound(id)
	}
	return room, nil
}

// Delete removes the chatroom and its entire message log.
func (d *Directory) Delete(id string) error {
	var dropped int
	err := d.state.Update(func(s *state.State) (state.Dirty, error) {
		i := s.RoomIndex(id)
		if i < 0 {
			return state.DirtyNone, domain.RoomNotFound(id)
		}
		s.Chatrooms = slices.Delete(s.Chatrooms, i, i+1)
		dropped = len(s.Messages[id])
		delete(s.Messages, id)
		return state.DirtyAll, nil
	})
	if err != nil {
		return err
	}
	d.log.Debug("Chatroom deleted", "chatroom", id, "messages", dropped)
	return nil
}

func titleError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &domain.ValidationError{Field: "title", Reason: err.Error()}
	}
	switch verrs[0].Tag() {
	case "required":
		return &domain.ValidationError{Field: "title", Reason: "must not be empty"}
	case "max":
		return &domain.ValidationError{Field: "title", Reason: fmt.Sprintf("must be at most %s characters", verrs[0].Param())}
	default:
		return &domain.ValidationError{Field: "title", Reason: verrs[0].Error()}
	}
}
