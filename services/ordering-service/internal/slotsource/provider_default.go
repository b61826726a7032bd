//go:build !protogen

package slotsource

import "log/slog"

func NewCatalogProvider(_ *slog.Logger, _ string) Provider {
	return nil
}
