// Package language resolves translation target languages into the Unicode
// scripts the name normalizer treats as already translated, and into the
// English display names used in translation prompts.
package language
