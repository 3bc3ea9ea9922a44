package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_signed_has_artifacts",
			SQL: `SELECT id, signed_at, signer_email FROM documents
                  WHERE status = 'signed'
                    AND (signed_at IS NULL OR signed_content IS NULL OR signer_email IS NULL)`,
		},
		{
			Name: "O2_pending_untouched",
			SQL: `SELECT id FROM documents
                  WHERE status = 'pending'
                    AND (signed_content IS NOT NULL OR signed_at IS NOT NULL OR signer_email IS NOT NULL)`,
		},
		{
			Name: "O3_signed_after_created",
			SQL:  `SELECT id, created_at, signed_at FROM documents WHERE signed_at < created_at`,
		},
		{
			Name: "O4_signed_grows_content",
			SQL: `SELECT id, octet_length(content), octet_length(signed_content) FROM documents
                  WHERE status = 'signed' AND octet_length(signed_content) <= octet_length(content)`,
		},
		{
			Name: "O5_token_digest_shape",
			SQL:  `SELECT id, token_digest FROM documents WHERE token_digest !~ '^[0-9a-f]{64}$'`,
		},
		{
			Name: "O6_revision_advances",
			SQL:  `SELECT id, revision FROM documents WHERE status = 'signed' AND revision < 2`,
		},
		{
			Name: "O7_signed_guard_trigger",
			SQL: `SELECT 'missing_documents_guard_signed' AS detail
                  WHERE NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'documents_guard_signed')`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		if rows.Next() {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
	}
	return "", "", nil
}

// SignedCount returns how many documents are in the signed state.
func SignedCount(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var n int
	err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE status = 'signed'`).Scan(&n)
	return n, err
}
