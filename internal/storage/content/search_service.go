// Implements title and full-text search across pages.

package content

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"regexp/syntax"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// PageInfo is a page name with its full content.
type PageInfo struct {
	Title    string `json:"title"`
	Contents string `json:"contents"`
}

// SearchService handles search and bulk reads over pages.
type SearchService struct {
	fileStore *FileStore
	workers   int
	limiter   *rate.Limiter
}

// NewSearchService creates a new search service reading up to workers pages
// concurrently. A positive ratePerSec throttles content searches.
func NewSearchService(fileStore *FileStore, workers int, ratePerSec float64, burst int) *SearchService {
	s := &SearchService{fileStore: fileStore, workers: max(workers, 1)}
	if ratePerSec > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(ratePerSec), max(burst, 1))
	}
	return s
}

// SearchTitles returns the titles containing every whitespace separated term
// of query, case-insensitively, sorted. An empty query matches nothing.
func (s *SearchService) SearchTitles(titles []string, query string) []string {
	terms := strings.Fields(strings.ToLower(query))
	results := []string{}
	if len(terms) == 0 {
		return results
	}
	for _, title := range titles {
		lower := strings.ToLower(title)
		if !slices.ContainsFunc(terms, func(term string) bool { return !strings.Contains(lower, term) }) {
			results = append(results, title)
		}
	}
	slices.Sort(results)
	return slices.Compact(results)
}

// SearchContents returns the pages whose content matches query as a whole
// word, sorted. See ContentPattern for how query is interpreted.
func (s *SearchService) SearchContents(ctx context.Context, query string) ([]string, error) {
	re := ContentPattern(query)
	if re == nil {
		return []string{}, nil
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("search throttled: %w", err)
		}
	}
	names, err := s.fileStore.ListPages()
	if err != nil {
		return nil, err
	}
	var mu sync.Mutex
	results := []string{}
	err = s.scan(ctx, names, func(name, content string) {
		if re.MatchString(content) {
			mu.Lock()
			results = append(results, name)
			mu.Unlock()
		}
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(results)
	return results, nil
}

// ReadAll returns every page with its content, in no particular order.
func (s *SearchService) ReadAll(ctx context.Context) ([]PageInfo, error) {
	names, err := s.fileStore.ListPages()
	if err != nil {
		return nil, err
	}
	var mu sync.Mutex
	infos := make([]PageInfo, 0, len(names))
	err = s.scan(ctx, names, func(name, content string) {
		mu.Lock()
		infos = append(infos, PageInfo{Title: name, Contents: content})
		mu.Unlock()
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// scan calls fn for every page in names. A page renamed after names was
// listed is read under its new name, so every page is seen exactly once.
func (s *SearchService) scan(ctx context.Context, names []string, fn func(name, content string)) error {
	missing, err := s.readPages(ctx, names, fn)
	if err != nil || missing == 0 {
		return err
	}
	again, err := s.fileStore.ListPages()
	if err != nil {
		return err
	}
	again = slices.DeleteFunc(again, func(n string) bool { return slices.Contains(names, n) })
	_, err = s.readPages(ctx, again, fn)
	return err
}

// readPages reads names concurrently and calls fn for each page found. It
// returns how many pages were gone.
func (s *SearchService) readPages(ctx context.Context, names []string, fn func(name, content string)) (int, error) {
	var missing atomic.Int32
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.workers)
	for _, name := range names {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			content, err := s.fileStore.ReadPage(name)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					missing.Add(1)
					return nil
				}
				return fmt.Errorf("%s: %w", name, err)
			}
			fn(name, content)
			return nil
		})
	}
	err := eg.Wait()
	return int(missing.Load()), err
}

// ContentPattern turns a user query into a case-insensitive whole-word
// regexp, or nil when the query is blank.
//
// The query is a regexp fragment so "front.*" stays live. A dangling trailing
// backslash is dropped. If the fragment is still not a valid regexp by
// itself, the whole query is matched literally instead of failing the search.
func ContentPattern(query string) *regexp.Regexp {
	frag := query
	if n := len(frag) - len(strings.TrimRight(frag, `\`)); n%2 == 1 {
		frag = frag[:len(frag)-1]
	}
	if strings.TrimSpace(frag) == "" {
		return nil
	}
	// The fragment must parse on its own: "a)|(b" compiles once wrapped but
	// escapes the word boundaries.
	if _, err := syntax.Parse(frag, syntax.Perl); err != nil {
		frag = regexp.QuoteMeta(frag)
	}
	return regexp.MustCompile(`(?i)\b(?:` + frag + `)\b`)
}
