package ports

import "time"

type Policy struct {
	MaxQueueLen  int           `koanf:"max_queue_len" yaml:"max_queue_len" validate:"gte=1"`
	MaxBatchSize int           `koanf:"max_batch_size" yaml:"max_batch_size" validate:"gte=1"`
	IdleSleep    time.Duration `koanf:"idle_sleep" yaml:"idle_sleep" validate:"gt=0"`

	OnQueueFull string `koanf:"on_queue_full" yaml:"on_queue_full" validate:"oneof=block drop reject"` // "reject", "block", "drop"
}
