// Package compiler turns one merged documentation tree into Docusaurus
// content: default-locale files under docs/, translated files under
// i18n/<locale>/docusaurus-plugin-content-docs/current/, sidebar category
// translations in current.json, and the version.json marker.
package compiler
