// Package resolver turns reference strings into stored instances.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rcliao/cips/internal/model"
)

// InstanceFinder is the subset of the store the resolver queries.
type InstanceFinder interface {
	Get(ctx context.Context, ns, id string) (*model.Instance, error)
	GetLatest(ctx context.Context, ns, branch string) (*model.Instance, error)
	Latest(ctx context.Context, ns string) (*model.Instance, error)
	ByGeneration(ctx context.Context, ns string, gen int) (*model.Instance, error)
	IDsByPrefix(ctx context.Context, ns, prefix string, limit int) ([]string, error)
	BySessionHandle(ctx context.Context, ns, handle string) (*model.Instance, error)
}

// Resolver maps human-friendly references to instances.
type Resolver struct {
	store InstanceFinder
}

func New(s InstanceFinder) *Resolver {
	return &Resolver{store: s}
}

var genPattern = regexp.MustCompile(`^(?:gen:|g:|g)(\d+)$`)

// idPrefixMinLen is the shortest string treated as an instance id
// prefix. Shorter unknown strings fall through to the handle lookup.
const idPrefixMinLen = 4

var idPrefixPattern = regexp.MustCompile(`^[0-9A-Za-z]+$`)

// Resolve maps a reference to a concrete instance. Grammar, in order:
//
//	latest | last | recent   most recent across branches, main on ties
//	gen:N | g:N | gN         instance at generation N
//	branch:NAME              the branch's latest instance
//	<id prefix>              unambiguous instance id prefix
//	<anything else>          opaque session handle recorded by an instance
//
// Unresolvable references report ErrNotFound; a prefix matching more
// than one instance reports ErrAmbiguous, never a silent pick.
func (r *Resolver) Resolve(ctx context.Context, ns, reference string) (*model.Instance, error) {
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return nil, fmt.Errorf("empty reference: %w", model.ErrNotFound)
	}

	switch strings.ToLower(ref) {
	case "latest", "last", "recent":
		return r.store.Latest(ctx, ns)
	}

	if m := genPattern.FindStringSubmatch(strings.ToLower(ref)); m != nil {
		gen, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("reference %q: %w", reference, model.ErrNotFound)
		}
		return r.store.ByGeneration(ctx, ns, gen)
	}

	if name, ok := strings.CutPrefix(ref, "branch:"); ok {
		return r.store.GetLatest(ctx, ns, name)
	}

	if len(ref) >= idPrefixMinLen && idPrefixPattern.MatchString(ref) {
		inst, err := r.byPrefix(ctx, ns, strings.ToUpper(ref))
		if err == nil || !isNotFound(err) {
			return inst, err
		}
		// No id matched; fall through to the handle lookup.
	}

	return r.store.BySessionHandle(ctx, ns, ref)
}

func (r *Resolver) byPrefix(ctx context.Context, ns, prefix string) (*model.Instance, error) {
	ids, err := r.store.IDsByPrefix(ctx, ns, prefix, 2)
	if err != nil {
		return nil, err
	}
	switch len(ids) {
	case 0:
		return nil, fmt.Errorf("prefix %s: %w", prefix, model.ErrNotFound)
	case 1:
		return r.store.Get(ctx, ns, ids[0])
	default:
		return nil, fmt.Errorf("prefix %s matches multiple instances: %w", prefix, model.ErrAmbiguous)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, model.ErrNotFound)
}
