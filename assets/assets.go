// Package assets bundles data files shipped with the binary.
package assets

import (
	"embed"
	"fmt"

	"cuentas/internal/core"

	"gopkg.in/yaml.v3"
)

//go:embed plan_contable.yaml
var chartFS embed.FS

type chartFile struct {
	Accounts []chartAccount `yaml:"accounts"`
}

type chartAccount struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// DefaultChart returns the chart-of-accounts template shipped with the
// application, validated and in file order so parents precede children.
func DefaultChart() ([]core.Account, error) {
	raw, err := chartFS.ReadFile("plan_contable.yaml")
	if err != nil {
		return nil, fmt.Errorf("read chart template: %w", err)
	}

	var file chartFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse chart template: %w", err)
	}
	if len(file.Accounts) == 0 {
		return nil, fmt.Errorf("chart template has no accounts")
	}

	accounts := make([]core.Account, 0, len(file.Accounts))
	for _, a := range file.Accounts {
		code, err := core.ParseAccountCode(a.Code)
		if err != nil {
			return nil, fmt.Errorf("chart template: %w", err)
		}
		if a.Name == "" {
			return nil, fmt.Errorf("chart template: account %s: %w", a.Code, core.ErrEmptyName)
		}
		accounts = append(accounts, core.Account{Code: code, Name: a.Name, Active: true})
	}
	return accounts, nil
}
