package domain

import (
	"sort"
	"strings"
)

// Source identifies one of the fixed content origins the assistant can
// retrieve from. The retrieval engine never invents identifiers outside
// this set.
type Source string

const (
	// SourceUploaded covers files the user uploaded directly.
	SourceUploaded Source = "uploaded"
	// SourceSynced covers documents mirrored from the synced folder.
	SourceSynced Source = "synced"
	// SourceArchive covers the external document-archive integration.
	SourceArchive Source = "document-archive"
	// SourceReadingLog covers the books/reading-log integration.
	SourceReadingLog Source = "reading-log"
)

// DefaultSource is the fallback bucket for search results that carry no
// source metadata.
const DefaultSource = SourceUploaded

// KnownSources returns the full set of valid source identifiers.
func KnownSources() []Source {
	return []Source{SourceUploaded, SourceSynced, SourceArchive, SourceReadingLog}
}

// IsValid reports whether s is one of the known source identifiers.
func (s Source) IsValid() bool {
	switch s {
	case SourceUploaded, SourceSynced, SourceArchive, SourceReadingLog:
		return true
	default:
		return false
	}
}

func (s Source) String() string {
	return string(s)
}

type sourceFilterKind int

const (
	filterAll sourceFilterKind = iota
	filterNone
	filterExplicit
)

// SourceFilter restricts a search to a subset of sources. It is a tagged
// union: all sources, no sources, or an explicit non-empty set. The zero
// value means "all sources".
type SourceFilter struct {
	kind    sourceFilterKind
	sources []Source
}

// AllSources returns a filter matching every known source.
func AllSources() SourceFilter {
	return SourceFilter{kind: filterAll}
}

// NoSources returns a filter matching nothing.
func NoSources() SourceFilter {
	return SourceFilter{kind: filterNone}
}

// ExplicitSources returns a filter restricted to the given sources.
// Invalid identifiers are dropped and duplicates collapsed; an empty
// result degrades to NoSources rather than silently matching everything.
func ExplicitSources(sources ...Source) SourceFilter {
	seen := make(map[Source]struct{}, len(sources))
	kept := make([]Source, 0, len(sources))
	for _, s := range sources {
		if !s.IsValid() {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		kept = append(kept, s)
	}
	if len(kept) == 0 {
		return NoSources()
	}
	return SourceFilter{kind: filterExplicit, sources: kept}
}

// ParseSourceFilter interprets the wire form of a source filter: the
// sentinels "all"/"none"/"" or a list of source identifiers.
func ParseSourceFilter(values []string) (SourceFilter, error) {
	if len(values) == 0 {
		return AllSources(), nil
	}
	if len(values) == 1 {
		switch strings.ToLower(strings.TrimSpace(values[0])) {
		case "", "all":
			return AllSources(), nil
		case "none":
			return NoSources(), nil
		}
	}
	sources := make([]Source, 0, len(values))
	for _, v := range values {
		s := Source(strings.ToLower(strings.TrimSpace(v)))
		if !s.IsValid() {
			return SourceFilter{}, NewDomainError(ErrCodeValidation, "unknown source: "+v)
		}
		sources = append(sources, s)
	}
	return ExplicitSources(sources...), nil
}

// IsAll reports whether the filter matches every source.
func (f SourceFilter) IsAll() bool { return f.kind == filterAll }

// IsNone reports whether the filter matches nothing.
func (f SourceFilter) IsNone() bool { return f.kind == filterNone }

// IsExplicit reports whether the filter names a concrete source set.
func (f SourceFilter) IsExplicit() bool { return f.kind == filterExplicit }

// Sources returns the explicit source set, or nil for the sentinels.
func (f SourceFilter) Sources() []Source {
	if f.kind != filterExplicit {
		return nil
	}
	out := make([]Source, len(f.sources))
	copy(out, f.sources)
	return out
}

// Contains reports whether the filter admits the given source.
func (f SourceFilter) Contains(s Source) bool {
	switch f.kind {
	case filterAll:
		return true
	case filterNone:
		return false
	default:
		for _, candidate := range f.sources {
			if candidate == s {
				return true
			}
		}
		return false
	}
}

// Strings returns the wire form of the filter.
func (f SourceFilter) Strings() []string {
	switch f.kind {
	case filterAll:
		return []string{"all"}
	case filterNone:
		return []string{"none"}
	default:
		out := make([]string, len(f.sources))
		for i, s := range f.sources {
			out[i] = string(s)
		}
		sort.Strings(out)
		return out
	}
}

func (f SourceFilter) String() string {
	return strings.Join(f.Strings(), ",")
}
