// SPDX-License-Identifier: MIT
// Copyright (c) 2020 Brian Starkey <stark3y@gmail.com>
package chunk

// Chunkable is a source of bytes which can be split into fixed-size
// chunks. The returned buffer is the complete data, header and all.
type Chunkable interface {
	Data() []byte
}

// Split slices data into consecutive runs of size bytes. The final run
// holds whatever remains and may be shorter. Runs are views into data,
// not copies. An empty buffer gives no runs, and so does a size < 1.
func Split(data []byte, size int) [][]byte {
	if size <= 0 {
		return nil
	}

	chunks := make([][]byte, 0, (len(data)+size-1)/size)
	for start := 0; start < len(data); start += size {
		end := start + size
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[start:end])
	}

	return chunks
}

// Chunks splits src's entire buffer into runs of size bytes.
func Chunks(src Chunkable, size int) [][]byte {
	return Split(src.Data(), size)
}
