package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/chatcommerce/assist/internal/config"
	"github.com/chatcommerce/assist/internal/email"
	"github.com/chatcommerce/assist/internal/store/rabbitmq"
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()

	if cfg.LeadNotifyEmail == "" {
		log.Fatalf("LEAD_NOTIFY_EMAIL is not set, nowhere to deliver lead notifications")
	}

	smtp := email.SMTPConfig{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	// Queue topology (main + retry + DLQ) is declared by the publisher with
	// dead-letter arguments; declaring here without them would conflict, so
	// the worker only consumes.
	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("worker started, queue=%s concurrency=%d notify=%s", cfg.RabbitQueue, concurrency, cfg.LeadNotifyEmail)

	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var n rabbitmq.LeadNotification
				if err := json.Unmarshal(d.Body, &n); err != nil || n.LeadID == 0 {
					log.Printf("worker=%d bad message: %v", workerID, err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := notifyLead(smtp, cfg.LeadNotifyEmail, cfg.SiteName, n); err != nil {
					log.Printf("worker=%d lead %d failed cost=%s err=%v", workerID, n.LeadID, time.Since(start), err)
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					log.Printf("worker=%d ack failed lead=%d err=%v", workerID, n.LeadID, err)
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}

func notifyLead(smtp email.SMTPConfig, to, siteName string, n rabbitmq.LeadNotification) error {
	subject := fmt.Sprintf("New chat lead for %s", siteName)

	body := fmt.Sprintf(
		"A visitor left their contact details in the store chat.\n\n"+
			"Name:    %s\nEmail:   %s\nPhone:   %s\nSession: %s\nLead ID: %d\n",
		n.Name, n.Email, n.Phone, n.SessionID, n.LeadID,
	)

	return email.SendText(smtp, to, subject, body)
}
