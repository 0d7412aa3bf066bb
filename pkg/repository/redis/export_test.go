package redis

var (
	EncodeVectorForTest = encodeVector
	DecodeVectorForTest = decodeVector
)
