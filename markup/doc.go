/*
Package markup holds the data model shared by every stage of a parsing
pipeline: locations, qualified names, attributes, signals and
diagnostics. It sits at the leaves of the dependency graph so that
decoder, tokenizers, parsers and writers can all speak the same types
without importing each other.

___________________________________________________________________________

# License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>
*/
package markup
