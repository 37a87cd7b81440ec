// Package manifest plans manifest-list assembly for pushes that request
// multiple compression formats.
package manifest

import (
	"strings"

	"github.com/opdev/registry-push/internal/image"
)

// ZstdAnnotation marks a manifest-list member as zstd-compressed so
// registries and clients can select it by compression.
const ZstdAnnotation = "io.github.containers.compression.zstd=true"

// Member is a single per-format entry in the manifest list.
type Member struct {
	// Format is the compression format as requested, e.g. "zstd:chunked".
	Format string
	// Image is the per-format image reference, tagged with the base tag
	// suffixed by the format token.
	Image image.Reference
	// Annotation accompanies the member when it is added to the list.
	// Empty when the member needs none.
	Annotation string
}

// Plan is the ordered set of per-format pushes plus the manifest list
// that collects them. Members execute in format-list order.
type Plan struct {
	// List is the manifest list name: the original base reference.
	List image.Reference
	// Members are the per-format images to push and then attach.
	Members []Member
}

// New builds a Plan for the requested compression formats over base.
// Fewer than two formats need no manifest list, so nil is returned and
// the image is pushed bare.
func New(formats []string, base image.Reference) *Plan {
	if len(formats) < 2 {
		return nil
	}

	plan := Plan{
		List:    base,
		Members: make([]Member, 0, len(formats)),
	}
	for _, format := range formats {
		member := Member{
			Format: format,
			Image: image.Reference{
				Repository: base.Repository,
				Tag:        base.Tag + "-" + strings.ReplaceAll(format, ":", "-"),
			},
		}
		if strings.HasPrefix(format, "zstd") {
			member.Annotation = ZstdAnnotation
		}
		plan.Members = append(plan.Members, member)
	}
	return &plan
}
