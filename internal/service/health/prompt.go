package health

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/yachaflex/pairing/internal/model/biometric"
)

// PromptAuthorizer asks for read access on a terminal and records the answer
// on a FileProvider.
type PromptAuthorizer struct {
	in       *bufio.Reader
	out      io.Writer
	provider *FileProvider
}

// NewPromptAuthorizer wires a terminal prompt to the provider it authorises.
func NewPromptAuthorizer(in *bufio.Reader, out io.Writer, provider *FileProvider) *PromptAuthorizer {
	return &PromptAuthorizer{in: in, out: out, provider: provider}
}

// RequestPermissions grants every requested kind on "y"/"yes" and nothing otherwise.
func (a *PromptAuthorizer) RequestPermissions(ctx context.Context, kinds []biometric.Kind) (Grants, error) {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}
	fmt.Fprintf(a.out, "Allow reading %s? [y/N] ", strings.Join(names, ", "))

	answer, err := a.in.ReadString('\n')
	if err != nil && answer == "" {
		return nil, fmt.Errorf("read permission answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		a.provider.Grant(kinds...)
	}
	return a.provider.GrantedPermissions(ctx)
}

var _ Authorizer = (*PromptAuthorizer)(nil)
