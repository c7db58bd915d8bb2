//go:build ignore

/*
Regenerates table.go from the WHATWG named character reference table.

	go run gen.go > table.go

___________________________________________________________________________

# License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>
*/
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

const entitiesURL = "https://html.spec.whatwg.org/entities.json"

func main() {
	resp, err := http.Get(entitiesURL)
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()
	var raw map[string]struct {
		Codepoints []int  `json:"codepoints"`
		Characters string `json:"characters"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		log.Fatal(err)
	}
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, strings.TrimPrefix(name, "&"))
	}
	sort.Strings(names)

	fmt.Println("package entity")
	fmt.Println()
	fmt.Println("// Code generated by gen.go from the WHATWG named character reference")
	fmt.Printf("// table (%s); DO NOT EDIT.\n", entitiesURL)
	fmt.Println()
	fmt.Println("// Names carry their terminating semicolon where the specification")
	fmt.Println("// requires one; legacy names accepted without a semicolon appear twice.")
	fmt.Println("var table = map[string]string{")
	for _, name := range names {
		entry := raw["&"+name]
		fmt.Printf("\t%s: %s,\n", strconv.Quote(name), strconv.Quote(entry.Characters))
	}
	fmt.Println("}")
}
