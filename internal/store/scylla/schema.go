package scylla

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/gocql/gocql"

	"wallet_shop/internal/utils"
)

var (
	//go:embed schema.cql
	shopSchema string
	//go:embed audit_schema.cql
	auditSchema string
)

// EnsureSchema crée les tables manquantes. Les keyspaces doivent exister.
func EnsureSchema(ctx context.Context, shop, audit *gocql.Session) error {
	if err := applyCQL(ctx, shop, shopSchema); err != nil {
		return err
	}
	if err := applyCQL(ctx, audit, auditSchema); err != nil {
		return err
	}
	utils.Log.Info("✅ Schéma ScyllaDB vérifié")
	return nil
}

func applyCQL(ctx context.Context, session *gocql.Session, cql string) error {
	for _, stmt := range splitStatements(cql) {
		if err := session.Query(stmt).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("schéma scylla: %w\n%s", err, stmt)
		}
	}
	return nil
}

func splitStatements(cql string) []string {
	var out []string
	for _, part := range strings.Split(cql, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
