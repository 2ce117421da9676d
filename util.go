package flake

import (
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

func memberName() string {
	id, _ := os.Hostname()
	if id == "" {
		// still unique per member without a hostname
		id = uuid.New().String()
	}
	return id + "-" + strconv.Itoa(os.Getpid()) + "-" + strconv.FormatInt(time.Now().UnixNano(), 36)
}
