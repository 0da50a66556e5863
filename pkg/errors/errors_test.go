package errors_test

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"testing"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	pkgerrors "github.com/joe/copy-new/pkg/errors"
)

func TestEnricherReturnsActionableUnchanged(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	enricher := pkgerrors.NewEnricher()
	original := pkgerrors.NewActionableError(
		errors.New("permission denied"),
		pkgerrors.CategoryPermission,
		[]string{"existing suggestion"},
		"/original/path",
	)

	enriched := enricher.Enrich(original, "/new/path")
	g.Expect(enriched).To(BeIdenticalTo(original))
}

func TestEnricherCategories(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected pkgerrors.ErrorCategory
	}{
		{
			name:     "disk full errno",
			err:      fmt.Errorf("failed to copy: %w", syscall.ENOSPC),
			expected: pkgerrors.CategoryDiskSpace,
		},
		{
			name:     "permission path error",
			err:      &os.PathError{Op: "open", Path: "/dst/a.raw", Err: os.ErrPermission},
			expected: pkgerrors.CategoryPermission,
		},
		{
			name:     "source vanished",
			err:      fmt.Errorf("failed to open source file: %w", os.ErrNotExist),
			expected: pkgerrors.CategoryPath,
		},
		{
			name:     "short write",
			err:      fmt.Errorf("failed to copy: %w", io.ErrShortWrite),
			expected: pkgerrors.CategoryCopy,
		},
		{
			name:     "message only",
			err:      errors.New("read /src/a.raw: input/output error"),
			expected: pkgerrors.CategoryCopy,
		},
		{
			name:     "unknown",
			err:      errors.New("something odd"),
			expected: pkgerrors.CategoryUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			enriched := pkgerrors.NewEnricher().Enrich(tt.err, "")

			var actionable pkgerrors.ActionableError
			g.Expect(errors.As(enriched, &actionable)).To(BeTrue())
			g.Expect(actionable.Category()).To(Equal(tt.expected))
			g.Expect(actionable.Suggestions()).NotTo(BeEmpty())
			g.Expect(errors.Is(enriched, tt.err)).To(BeTrue(), "original error must stay in the chain")
		})
	}
}

func TestEnricherExtractsPathFromPathError(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	err := fmt.Errorf("copy failed: %w", &os.PathError{Op: "open", Path: "/src/img_7.raw", Err: os.ErrPermission})

	enriched := pkgerrors.NewEnricher().Enrich(err, "")

	var actionable pkgerrors.ActionableError
	g.Expect(errors.As(enriched, &actionable)).To(BeTrue())
	g.Expect(actionable.AffectedPath()).To(Equal("/src/img_7.raw"))
	g.Expect(strings.Join(actionable.Suggestions(), "\n")).To(ContainSubstring("/src/img_7.raw"))
}

func TestEnrichAsWatermark(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	enriched := pkgerrors.NewEnricher().EnrichAs(errors.New("rename failed"), pkgerrors.CategoryWatermark, "/data/last_id.txt")

	formatted := pkgerrors.FormatSuggestions(enriched)
	g.Expect(formatted).To(HavePrefix("  • "))
	g.Expect(formatted).To(ContainSubstring("/data/last_id.txt"))
}

func TestEnrichNil(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	g.Expect(pkgerrors.NewEnricher().Enrich(nil, "/x")).To(BeNil())
	g.Expect(pkgerrors.FormatSuggestions(nil)).To(BeEmpty())
	g.Expect(pkgerrors.FormatSuggestions(errors.New("plain"))).To(BeEmpty())
}
