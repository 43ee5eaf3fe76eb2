// Package plan holds the immutable plan catalog and the pricing rules that
// depend only on configuration: the term-end decision for plan changes,
// group tier upgrades and the legacy group pricing table.
package plan
