package coreops

import "fmt"

var errTruncated = fmt.Errorf("coreops: operand truncated")
