// Package types defines the Backend, Source and Writer interfaces, the
// Locator and snapshot types, and the standard errors of the listings
// data-access layer.
package types
