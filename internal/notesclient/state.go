package notesclient

import "strings"

// State is the complete client-side view. Derived collections are computed on read.
type State struct {
	Notes        []Note
	SearchQuery  string
	SelectedTags []string
}

// TagIndex returns the distinct tags of the held notes in first-appearance order.
func (s State) TagIndex() []string {
	return TagIndex(s.Notes)
}

// FilteredNotes returns the notes matching both the search query and the selected tags.
func (s State) FilteredNotes() []Note {
	return FilterNotes(s.Notes, s.SearchQuery, s.SelectedTags)
}

// TagIndex collects the distinct non-empty tags across notes, ordered by first appearance.
func TagIndex(notes []Note) []string {
	index := make([]string, 0)
	seen := make(map[string]struct{})
	for _, note := range notes {
		for _, tag := range note.Tags {
			if tag == "" {
				continue
			}
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			index = append(index, tag)
		}
	}
	return index
}

// FilterNotes keeps notes whose title or content contains query, ignoring case,
// and that carry every selected tag. An empty query or selection does not restrict.
func FilterNotes(notes []Note, query string, selectedTags []string) []Note {
	lowered := strings.ToLower(query)
	filtered := make([]Note, 0, len(notes))
	for _, note := range notes {
		if lowered != "" &&
			!strings.Contains(strings.ToLower(note.Title), lowered) &&
			!strings.Contains(strings.ToLower(note.Content), lowered) {
			continue
		}
		if !hasAllTags(note, selectedTags) {
			continue
		}
		filtered = append(filtered, note)
	}
	return filtered
}

func hasAllTags(note Note, tags []string) bool {
	for _, tag := range tags {
		if !note.HasTag(tag) {
			return false
		}
	}
	return true
}
