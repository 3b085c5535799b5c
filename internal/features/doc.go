// Package features turns decoded classifier payloads into tag or color
// features and merges the features of several classifiers into one
// score-ordered set.
package features
