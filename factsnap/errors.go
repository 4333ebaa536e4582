package factsnap

import "github.com/factline/factrt"

func ioError(op, key string, cause error) error {
	return factrt.SnapshotIOError{Op: op, Key: key, Cause: cause}
}

func serializationError(classID string, cause error) error {
	return factrt.SerializationError{ClassID: classID, Cause: cause}
}
