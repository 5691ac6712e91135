package downloader

import (
	"fmt"

	"github.com/bijbelquiz/bijbellezer/internal/catalog"
	"github.com/bijbelquiz/bijbellezer/internal/entities"
)

// span is a contiguous verse range within one chapter — the unit of a
// single remote fetch.
type span struct {
	bookID     string
	chapter    int
	startVerse int
	endVerse   int
}

func (sp span) size() int {
	return sp.endVerse - sp.startVerse + 1
}

// plan is the ordered set of chapter ranges a task downloads.
type plan struct {
	spans []span
}

// buildPlan expands a task's scope into per-chapter verse ranges using the
// bundled catalog.
func buildPlan(task *entities.DownloadTask) (*plan, error) {
	switch task.Type {
	case entities.DownloadTypeBook:
		chapters, err := catalog.Chapters(task.BookID)
		if err != nil {
			return nil, err
		}
		p := &plan{spans: make([]span, 0, len(chapters))}
		for _, ch := range chapters {
			p.spans = append(p.spans, span{
				bookID:     task.BookID,
				chapter:    ch.Chapter,
				startVerse: 1,
				endVerse:   ch.VerseCount,
			})
		}
		return p, nil

	case entities.DownloadTypeChapter, entities.DownloadTypeVerseRange:
		count, err := catalog.VerseCount(task.BookID, task.Chapter)
		if err != nil {
			return nil, err
		}
		start, end := 1, count
		if task.Type == entities.DownloadTypeVerseRange {
			if task.StartVerse > 0 {
				start = task.StartVerse
			}
			if task.EndVerse > 0 && task.EndVerse < count {
				end = task.EndVerse
			}
		}
		return &plan{spans: []span{{
			bookID:     task.BookID,
			chapter:    task.Chapter,
			startVerse: start,
			endVerse:   end,
		}}}, nil
	}
	return nil, fmt.Errorf("unknown download type: %s", task.Type)
}

// batchesFrom splits the plan into fetch-sized spans, skipping the first
// `skip` verses so resumed tasks continue where they stopped.
func (p *plan) batchesFrom(skip, batchSize int) []span {
	var batches []span
	remaining := skip
	for _, sp := range p.spans {
		start := sp.startVerse
		if remaining >= sp.size() {
			remaining -= sp.size()
			continue
		}
		start += remaining
		remaining = 0

		for start <= sp.endVerse {
			end := start + batchSize - 1
			if end > sp.endVerse {
				end = sp.endVerse
			}
			batches = append(batches, span{
				bookID:     sp.bookID,
				chapter:    sp.chapter,
				startVerse: start,
				endVerse:   end,
			})
			start = end + 1
		}
	}
	return batches
}
