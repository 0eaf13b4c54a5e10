// этот код не зависит от приложения,
// и нужен только для ручной проверки команд смены статуса через кафку
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"github.com/segmentio/kafka-go"

	"github.com/asquebay/restaurant-order-service/internal/model"
)

func main() {
	// значения по умолчанию совпадают с config/config.yaml
	brokerAddress := flag.String("broker", "localhost:9092", "kafka broker address")
	topic := flag.String("topic", "order-status", "topic with status commands")
	orderID := flag.Int64("order", 1, "order id")
	status := flag.String("status", "processing", "new order status")
	flag.Parse()

	message, err := json.Marshal(model.StatusChange{OrderID: *orderID, Status: *status})
	if err != nil {
		log.Fatalf("Failed to encode message: %v", err)
	}

	// настройки писателя (producer-а)
	writer := &kafka.Writer{
		Addr:     kafka.TCP(*brokerAddress),
		Topic:    *topic,
		Balancer: &kafka.LeastBytes{},
	}
	defer writer.Close()

	log.Println("Sending status command to Kafka...")
	err = writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(fmt.Sprint(*orderID)),
			Value: message,
		},
	)
	if err != nil {
		log.Fatalf("Failed to write message: %v", err)
	}
	fmt.Printf("Command sent: %s\n", message)
}
