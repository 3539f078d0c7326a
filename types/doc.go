// Package types provides core types used across the qaflow service.
// This package has ZERO dependencies on other qaflow packages to avoid
// circular imports. All other packages should import types from here.
package types
