//go:build production

package config

// ProductionBuild reports whether the binary was built with the production tag.
const ProductionBuild = true
