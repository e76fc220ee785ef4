package domain

import "github.com/SSP-Group-Of-Companies/TraxYard-sub001/internal/export"

// JobMessage is one export job claimed from RabbitMQ. The full request
// rides in the message body, so processing never depends on the status
// record surviving between submission and pickup.
type JobMessage struct {
	JobID       string
	Request     *export.Request
	DeliveryTag uint64
}
