/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package bindings

// ByteBuffer is a byte result whose ownership crosses the boundary. The
// receiver releases it with Free once consumed; the slice returned by Bytes
// is no longer valid after that.
type ByteBuffer struct {
	data []byte
}

// Bytes returns the buffer contents.
func (b *ByteBuffer) Bytes() []byte {
	if b == nil {
		return nil
	}

	return b.data
}

// Len returns the content length in bytes.
func (b *ByteBuffer) Len() int {
	if b == nil {
		return 0
	}

	return len(b.data)
}

// String returns the contents as a string.
func (b *ByteBuffer) String() string {
	return string(b.Bytes())
}

// Free releases the contents. Free on a released or nil buffer is a no-op.
func (b *ByteBuffer) Free() {
	if b != nil {
		b.data = nil
	}
}

// FreeByteBuffer releases a buffer returned by a boundary call.
func FreeByteBuffer(buffer *ByteBuffer) {
	buffer.Free()
}
