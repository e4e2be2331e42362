package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sakif/mindflow/internal/apperror"
	"github.com/sakif/mindflow/internal/model"
	"github.com/sakif/mindflow/internal/repository"
)

// wikiLinkPattern matches [[Title]]. The lazy group stops at the first "]]"
// and "." does not cross newlines.
var wikiLinkPattern = regexp.MustCompile(`\[\[(.*?)\]\]`)

// ExtractWikiLinks returns the distinct [[Title]] references in content in
// order of first appearance. Titles are compared exactly (case and
// surrounding spaces count); blank ones are dropped.
func ExtractWikiLinks(content string) []string {
	matches := wikiLinkPattern.FindAllStringSubmatch(content, -1)
	titles := make([]string, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		title := m[1]
		if seen[title] || strings.TrimSpace(title) == "" {
			continue
		}
		seen[title] = true
		titles = append(titles, title)
	}
	return titles
}

// LinkProcessor keeps a note's manual links in sync with its content.
type LinkProcessor struct {
	logger *slog.Logger
}

func NewLinkProcessor(logger *slog.Logger) *LinkProcessor {
	return &LinkProcessor{logger: logger}
}

// Process rewrites the manual outgoing links of noteID from content.
//
// Afterwards the note's manual links are exactly the distinct non-blank
// [[Title]] references, each resolved to the user's oldest note with that
// exact title or to a newly created empty "ghost" note. A note referencing
// its own title gets no link. Returns the number of ghosts created.
//
// Run it on the Store of the transaction that saved the note so a failure
// leaves neither a half-written link set nor orphan ghosts.
func (p *LinkProcessor) Process(ctx context.Context, store repository.Store, userID, noteID, content string) (int, error) {
	titles := ExtractWikiLinks(content)
	for _, title := range titles {
		if utf8.RuneCountInString(title) > MaxTitleLength {
			return 0, apperror.ValidationFailed("content",
				fmt.Sprintf("linked title must be %d characters or fewer", MaxTitleLength))
		}
	}

	if err := store.Links().DeleteBySource(ctx, noteID, model.LinkTypeManual); err != nil {
		return 0, fmt.Errorf("service/links: clearing links: %w", err)
	}

	ghosts := 0
	for _, title := range titles {
		target, err := store.Notes().FindByTitle(ctx, userID, title)
		if errors.Is(err, apperror.ErrNotFound) {
			target = &model.Note{UserID: userID, Title: title}
			if err := store.Notes().Create(ctx, target); err != nil {
				return 0, fmt.Errorf("service/links: creating ghost note: %w", err)
			}
			ghosts++
		} else if err != nil {
			return 0, fmt.Errorf("service/links: resolving %q: %w", title, err)
		}

		if target.ID == noteID {
			continue
		}
		err = store.Links().Create(ctx, &model.Link{
			SourceID: noteID,
			TargetID: target.ID,
			Type:     model.LinkTypeManual,
		})
		if err != nil {
			return 0, fmt.Errorf("service/links: linking to %q: %w", title, err)
		}
	}

	if len(titles) > 0 {
		p.logger.Debug("links processed",
			slog.String("note_id", noteID),
			slog.Int("links", len(titles)),
			slog.Int("ghosts", ghosts),
		)
	}
	return ghosts, nil
}
