package pattern

import (
	"time"

	"github.com/jmorgan/errsage/internal/model"
)

// DefaultPatterns returns the builtin set of curated error patterns.
func DefaultPatterns() []model.ErrorPattern {
	now := time.Now()
	return []model.ErrorPattern{
		{
			ID:                  "null-property-access",
			Category:            "null-reference",
			Signature:           `cannot read propert(y|ies) .* of (undefined|null)`,
			ConfidenceThreshold: 85,
			Causes: []string{
				"object accessed before initialization",
				"missing null guard on an optional value",
				"async result used before resolution",
			},
			Preventions: []string{
				"use optional chaining on nullable paths",
				"validate inputs at the call boundary",
			},
			FixTemplates: []string{
				"add a null check before the property access",
				"initialize the object with a safe default",
			},
			SuccessRate: 92,
			LastUpdated: now,
		},
		{
			ID:                  "undefined-reference",
			Category:            "null-reference",
			Signature:           `\b\w+ is not defined\b`,
			ConfidenceThreshold: 85,
			Causes: []string{
				"missing import or require",
				"variable referenced outside its scope",
				"typo in identifier name",
			},
			Preventions: []string{"enable strict linting for undeclared identifiers"},
			FixTemplates: []string{
				"import the missing symbol",
				"declare the variable before use",
			},
			SuccessRate: 90,
			LastUpdated: now,
		},
		{
			ID:                  "module-not-found",
			Category:            "dependency",
			Signature:           `(cannot find module|module not found|no such module|package .* is not in)`,
			ConfidenceThreshold: 85,
			Causes: []string{
				"dependency not installed",
				"wrong relative import path",
				"lockfile out of sync with manifest",
			},
			Preventions: []string{"pin dependencies and install from the lockfile in CI"},
			FixTemplates: []string{
				"install the missing dependency",
				"fix the import path casing and location",
			},
			SuccessRate: 94,
			LastUpdated: now,
		},
		{
			ID:                  "connection-refused",
			Category:            "network",
			Signature:           `(connection refused|econnrefused|dial tcp .* refused)`,
			ConfidenceThreshold: 80,
			Causes: []string{
				"target service not running",
				"wrong host or port in configuration",
				"firewall blocking the connection",
			},
			Preventions: []string{"health-check dependencies before connecting"},
			FixTemplates: []string{
				"start the target service and verify the port",
				"check connection configuration against the environment",
			},
			SuccessRate: 88,
			LastUpdated: now,
		},
		{
			ID:                  "request-timeout",
			Category:            "network",
			Signature:           `(timeout|timed out|deadline exceeded|etimedout)`,
			ConfidenceThreshold: 75,
			Causes: []string{
				"slow upstream service",
				"timeout budget too tight for the operation",
				"network partition or packet loss",
			},
			Preventions: []string{"set timeouts from measured latency percentiles"},
			FixTemplates: []string{
				"raise the timeout or add retry with backoff",
				"profile the upstream call for slowness",
			},
			SuccessRate: 82,
			LastUpdated: now,
		},
		{
			ID:                  "permission-denied",
			Category:            "permissions",
			Signature:           `(permission denied|eacces|access is denied|operation not permitted)`,
			ConfidenceThreshold: 85,
			Causes: []string{
				"process running as the wrong user",
				"file mode too restrictive",
				"missing capability or role grant",
			},
			Preventions: []string{"run services under dedicated users with explicit grants"},
			FixTemplates: []string{
				"adjust file ownership or mode",
				"grant the required role to the runtime identity",
			},
			SuccessRate: 89,
			LastUpdated: now,
		},
		{
			ID:                  "out-of-memory",
			Category:            "resources",
			Signature:           `(out of memory|oom|heap limit|cannot allocate memory|killed process)`,
			ConfidenceThreshold: 80,
			Causes: []string{
				"unbounded accumulation in a long-lived process",
				"working set larger than the memory limit",
				"leak in a cache or listener registration",
			},
			Preventions: []string{"bound caches and stream large datasets"},
			FixTemplates: []string{
				"raise the memory limit and profile allocations",
				"process the input in bounded chunks",
			},
			SuccessRate: 78,
			LastUpdated: now,
		},
		{
			ID:                  "syntax-error",
			Category:            "build",
			Signature:           `(syntax error|unexpected token|parse error|expected .* but found)`,
			ConfidenceThreshold: 90,
			Causes: []string{
				"unbalanced brackets or quotes",
				"language feature unsupported by the toolchain version",
			},
			Preventions: []string{"format and lint on save"},
			FixTemplates: []string{
				"fix the syntax at the reported location",
				"align the toolchain version with the source syntax",
			},
			SuccessRate: 96,
			LastUpdated: now,
		},
		{
			ID:                  "type-mismatch",
			Category:            "build",
			Signature:           `(type error|cannot use .* as .* value|is not assignable to|incompatible types)`,
			ConfidenceThreshold: 85,
			Causes: []string{
				"interface changed without updating callers",
				"implicit conversion assumed where none exists",
			},
			Preventions: []string{"type-check in CI before merge"},
			FixTemplates: []string{
				"convert the value to the expected type explicitly",
				"update the caller to the new signature",
			},
			SuccessRate: 91,
			LastUpdated: now,
		},
		{
			ID:                  "auth-failure",
			Category:            "security",
			Signature:           `(unauthorized|401|invalid (token|credentials|api key)|authentication failed|forbidden|403)`,
			ConfidenceThreshold: 85,
			Causes: []string{
				"expired or rotated credential still cached",
				"token issued for a different audience",
				"clock skew invalidating signed tokens",
			},
			Preventions: []string{"alert on credential expiry ahead of rotation"},
			FixTemplates: []string{
				"refresh the credential and clear cached tokens",
				"verify the token audience and scopes",
			},
			SuccessRate: 87,
			LastUpdated: now,
		},
		{
			ID:                  "db-constraint-violation",
			Category:            "database",
			Signature:           `(unique constraint|duplicate key|foreign key constraint|not.null constraint)`,
			ConfidenceThreshold: 85,
			Causes: []string{
				"retry inserted the same row twice",
				"parent row deleted while children exist",
				"required column missing a value",
			},
			Preventions: []string{"use idempotent upserts for retried writes"},
			FixTemplates: []string{
				"switch the insert to an upsert",
				"enforce the invariant in application code before the write",
			},
			SuccessRate: 90,
			LastUpdated: now,
		},
		{
			ID:                  "disk-full",
			Category:            "resources",
			Signature:           `(no space left on device|enospc|disk quota exceeded)`,
			ConfidenceThreshold: 90,
			Causes: []string{
				"log or artifact growth without rotation",
				"temp files never cleaned up",
			},
			Preventions: []string{"monitor disk usage with rotation policies"},
			FixTemplates: []string{
				"rotate or prune the offending directory",
				"move large artifacts to object storage",
			},
			SuccessRate: 93,
			LastUpdated: now,
		},
	}
}
