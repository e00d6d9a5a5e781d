// Package events broadcasts ingestion and user activity to live listeners.
package events

import (
	"context"
	"errors"
	"time"

	"newslens/pkg/models"
)

const (
	TypeArticleIngested    = "article.ingested"
	TypeFetchCompleted     = "fetch.completed"
	TypeInteractionToggled = "interaction.toggled"
)

type Event struct {
	Type      string                 `json:"type"`
	At        time.Time              `json:"at"`
	Article   *models.Article        `json:"article,omitempty"`
	Added     *int                   `json:"added,omitempty"`
	UserID    string                 `json:"userId,omitempty"`
	ArticleID string                 `json:"articleId,omitempty"`
	Kind      models.InteractionKind `json:"kind,omitempty"`
	Active    *bool                  `json:"active,omitempty"`
}

func ArticleIngested(a models.Article) Event {
	return Event{Type: TypeArticleIngested, At: time.Now().UTC(), Article: &a}
}

func FetchCompleted(added int) Event {
	return Event{Type: TypeFetchCompleted, At: time.Now().UTC(), Added: &added}
}

func InteractionToggled(userID, articleID string, kind models.InteractionKind, active bool) Event {
	return Event{
		Type:      TypeInteractionToggled,
		At:        time.Now().UTC(),
		UserID:    userID,
		ArticleID: articleID,
		Kind:      kind,
		Active:    &active,
	}
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Fanout delivers to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }
