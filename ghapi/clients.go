package ghapi

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ammario/tlru"
	"github.com/beatlabs/github-auth/app"
	"github.com/google/go-github/v59/github"
	"golang.org/x/oauth2"
)

// NewTokenClient returns a client authenticated with a personal access
// token. An empty token yields an anonymous client.
func NewTokenClient(ctx context.Context, token string) *github.Client {
	if token == "" {
		return github.NewClient(nil)
	}
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	return github.NewClient(oauth2.NewClient(ctx, ts))
}

// Clients hands out GitHub clients for repositories. When AppConfig is set
// the client authenticates as the app installation of the repository,
// otherwise Token is used.
type Clients struct {
	Token     string
	AppConfig *app.Config

	once            sync.Once
	repoToInstallID *tlru.Cache[string, int64]
}

// ForRepo returns a client able to search the "owner/name" repository.
func (c *Clients) ForRepo(ctx context.Context, fullName string) (*github.Client, error) {
	if c.AppConfig == nil {
		return NewTokenClient(ctx, c.Token), nil
	}

	owner, repo, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("invalid repository %q", fullName)
	}

	c.once.Do(func() {
		c.repoToInstallID = tlru.New[string, int64](tlru.ConstantCost, 4096)
	})

	installID, err := c.repoToInstallID.Do(fullName, func() (int64, error) {
		return InstallIDForRepo(ctx, c.AppConfig.Client(), owner, repo)
	}, time.Hour)
	if err != nil {
		return nil, fmt.Errorf("find installation: %w", err)
	}

	instConfig, err := c.AppConfig.InstallationConfig(strconv.FormatInt(installID, 10))
	if err != nil {
		return nil, fmt.Errorf("get installation config: %w", err)
	}
	return github.NewClient(instConfig.Client(ctx)), nil
}
