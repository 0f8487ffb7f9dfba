package source

import (
	"context"

	"github.com/hashicorp/go-getter"
)

// GetterRepository checks out a repository with hashicorp/go-getter, which
// handles git/https URLs, GitHub shorthand and archive sources uniformly.
type GetterRepository struct {
	URL string
	Ref string
}

var _ Repository = (*GetterRepository)(nil)

// Checkout fetches the repository tree into dest.
func (r *GetterRepository) Checkout(ctx context.Context, dest string) error {
	src := r.URL
	if r.Ref != "" {
		src += "?ref=" + r.Ref
	}
	client := &getter.Client{
		Ctx:  ctx,
		Src:  src,
		Dst:  dest,
		Mode: getter.ClientModeDir,
	}
	if err := client.Get(); err != nil {
		return &UnreachableError{URL: r.URL, Err: err}
	}
	return nil
}

// GetterOpener is the default Opener, producing GetterRepository instances.
type GetterOpener struct{}

func (GetterOpener) Open(rawURL, ref string) (Repository, error) {
	return &GetterRepository{URL: rawURL, Ref: ref}, nil
}
