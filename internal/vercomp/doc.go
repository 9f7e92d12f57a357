// Package vercomp orders dotted numeric version strings such as "1.4.10" or "v2.0".
package vercomp
