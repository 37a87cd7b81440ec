// Package image resolves user-provided image and tag inputs into the
// source and destination references used for a push.
package image

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/google/go-containerregistry/pkg/name"

	"github.com/opdev/registry-push/internal/errors"
)

// DefaultTag is substituted when no tags are requested.
const DefaultTag = "latest"

// defaultRegistryNamespace prefixes bare single-segment image names so
// they address the same image the Docker daemon resolves them to.
const defaultRegistryNamespace = "docker.io/library"

// ParseTags splits the raw whitespace-delimited tag input. An empty
// input yields a single defaultTag entry.
func ParseTags(raw string, defaultTag string) []string {
	tags := strings.Fields(raw)
	if len(tags) == 0 {
		return []string{defaultTag}
	}
	return tags
}

// NormalizeTags lowercases every tag. The second return value is true if
// any entry differed from its original form, so callers can warn once.
func NormalizeTags(tags []string) ([]string, bool) {
	normalized := make([]string, 0, len(tags))
	changed := false
	for _, tag := range tags {
		lowered := strings.ToLower(tag)
		if lowered != tag {
			changed = true
		}
		normalized = append(normalized, lowered)
	}
	return normalized, changed
}

// ValidateHomogeneous fails when the tag set mixes full image names and
// short tags. The two forms resolve sources and destinations differently,
// so a mixed set is ambiguous.
func ValidateHomogeneous(tags []string) error {
	fullNames := 0
	for _, tag := range tags {
		if IsFullImageName(tag) {
			fullNames++
		}
	}
	if fullNames != 0 && fullNames != len(tags) {
		return fmt.Errorf("%w: tags cannot mix full image names and short tags: %s",
			errors.ErrValidation, strings.Join(tags, ", "))
	}
	return nil
}

// ValidateInputs ensures an image and registry accompany short tags.
// Full image names carry their own repository path, so this only applies
// to short-tag sets.
func ValidateInputs(image, registry string, tags []string) error {
	if len(tags) > 0 && IsFullImageName(tags[0]) {
		return nil
	}
	if image == "" || registry == "" {
		return fmt.Errorf("%w: an image and registry are required when tags are not full image names",
			errors.ErrValidation)
	}
	return nil
}

// IsFullImageName reports whether s encodes repository:tag on its own,
// meaning it contains a colon past the first character.
func IsFullImageName(s string) bool {
	return strings.Index(s, ":") > 0
}

// FullImageName joins image and tag, unless the tag is already a full
// image name, in which case it is returned unchanged.
func FullImageName(image, tagOrFullName string) string {
	if IsFullImageName(tagOrFullName) {
		return tagOrFullName
	}
	return fmt.Sprintf("%s:%s", image, tagOrFullName)
}

// CanonicalRegistryImageName qualifies a bare image name the way the
// Docker daemon does, so freshness comparisons address the same image:
// single-segment names gain the default registry namespace, two-segment
// names gain the default registry host unless the first segment already
// names a private registry host.
func CanonicalRegistryImageName(image string) string {
	parts := strings.Split(image, "/")
	switch len(parts) {
	case 1:
		return fmt.Sprintf("%s/%s", defaultRegistryNamespace, image)
	case 2:
		// ECR repositories are addressed as host/name with no namespace.
		if strings.Contains(parts[0], "amazonaws.com") {
			return image
		}
		return fmt.Sprintf("docker.io/%s", image)
	default:
		return image
	}
}

// Reference is a fully qualified image name, split at the tag delimiter.
type Reference struct {
	Repository string
	Tag        string
}

// NewReference builds a Reference from an image and a tag or full name.
func NewReference(image, tagOrFullName string) Reference {
	full := FullImageName(image, tagOrFullName)
	idx := strings.LastIndex(full, ":")
	return Reference{
		Repository: full[:idx],
		Tag:        full[idx+1:],
	}
}

func (r Reference) String() string {
	return r.Repository + ":" + r.Tag
}

// Canonical returns the reference with its repository qualified by
// CanonicalRegistryImageName.
func (r Reference) Canonical() Reference {
	return Reference{
		Repository: CanonicalRegistryImageName(r.Repository),
		Tag:        r.Tag,
	}
}

// References holds the ordered source and destination references for a
// run. Sources and Destinations are index-aligned.
type References struct {
	Sources      []Reference
	Destinations []Reference
}

// BuildReferences maps every tag to a source reference on image and a
// destination reference under registry. The registry's trailing slash is
// trimmed before joining. When a tag is a full image name, it is used
// verbatim on both sides.
func BuildReferences(ctx context.Context, image, registry string, tags []string) References {
	logger := logr.FromContextOrDiscard(ctx)

	if strings.Contains(image, "/") && strings.Contains(registry, "/") {
		logger.Info("both the image and registry inputs contain a path separator; "+
			"the destination path may contain more components than intended",
			"image", image, "registry", registry)
	}

	registryPath := strings.TrimSuffix(registry, "/") + "/" + image

	refs := References{
		Sources:      make([]Reference, 0, len(tags)),
		Destinations: make([]Reference, 0, len(tags)),
	}
	for _, tag := range tags {
		refs.Sources = append(refs.Sources, NewReference(image, tag))

		destination := NewReference(registryPath, tag)
		if _, err := name.ParseReference(destination.String(), name.WeakValidation); err != nil {
			logger.Info("destination does not parse as a standard registry reference",
				"reference", destination.String(), "error", err.Error())
		}
		refs.Destinations = append(refs.Destinations, destination)
	}

	return refs
}
