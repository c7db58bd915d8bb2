package stream

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/

import "io"

// FromReader adapts an io.Reader as a byte-chunk stream, the usual byte
// source for synchronous hosts. chunkSize ≤ 0 selects a default.
func FromReader(r io.Reader, chunkSize int) Stream[[]byte] {
	if chunkSize <= 0 {
		chunkSize = 4096
	}
	var pending error
	return Func(func(onErr func(error), onEnd func(), onVal func([]byte)) {
		if pending != nil {
			if pending == io.EOF {
				onEnd()
			} else {
				onErr(pending)
			}
			return
		}
		buf := make([]byte, chunkSize)
		for {
			n, err := r.Read(buf)
			if err != nil {
				pending = err // deliver any read bytes first
			}
			if n > 0 {
				onVal(buf[:n])
				return
			}
			if err == io.EOF {
				onEnd()
				return
			}
			if err != nil {
				onErr(err)
				return
			}
		}
	})
}
