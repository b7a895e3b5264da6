package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// The audit trail and the attempt ledger are append-only at the
// database level, not just by code discipline. Guard the DDL so the
// protections cannot be dropped silently.
func TestSchemaEnforcesAppendOnly(t *testing.T) {
	assert.Contains(t, schema, "CREATE OR REPLACE TRIGGER audit_append_only")
	assert.Contains(t, schema, "BEFORE UPDATE OR DELETE ON audit")
	assert.Contains(t, schema, "ON UPDATE TO download_attempts DO INSTEAD NOTHING")
	assert.Contains(t, schema, "ON DELETE TO download_attempts DO INSTEAD NOTHING")

	// rules do not rewrite foreign-key cascades, so job deletion must
	// still cascade into the ledger
	assert.Contains(t, schema, "REFERENCES jobs (id) ON DELETE CASCADE")
}
