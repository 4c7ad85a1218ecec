package targets

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jo-hoe/ocrmd/internal/common"
)

// Target is an output destination for a Markdown document.
type Target interface {
	Name() string
	Post(ctx context.Context, req TargetRequest) (TargetResult, error)
}

// TargetRequest contains data needed to write one document.
type TargetRequest struct {
	JobID      string
	Markdown   string
	SourcePath string // file that was transcribed
	FileName   string // original name; falls back to the base of SourcePath
	Unique     bool   // suffix the name with the short job id
	Timestamp  time.Time
}

// TargetResult describes where the content landed.
type TargetResult struct {
	TargetName string
	Location   string
}

// shortIDLen is the job id prefix used to tell apart documents with the same name.
const shortIDLen = 8

// MarkdownName returns "<base name without extension>.md" for the request's file,
// or "<stem>-<short job id>.md" when Unique is set.
func (r TargetRequest) MarkdownName() string {
	name := r.FileName
	if name == "" {
		name = r.SourcePath
	}
	base := filepath.Base(filepath.FromSlash(strings.ReplaceAll(name, "\\", "/")))
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = r.JobID
	}
	if stem := strings.TrimSuffix(base, filepath.Ext(base)); stem != "" {
		base = stem
	}
	if r.Unique && r.JobID != "" && base != r.JobID {
		base += "-" + r.JobID[:min(shortIDLen, len(r.JobID))]
	}
	return base + common.MarkdownExt
}

// Registry holds initialized targets by name.
type Registry struct {
	byName map[string]Target
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Target)}
}

func (r *Registry) Add(t Target) {
	r.byName[t.Name()] = t
}

func (r *Registry) Get(name string) (Target, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for k := range r.byName {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
