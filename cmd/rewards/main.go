package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"helios-backend/internal/handlers"
)

func main() {
	h := &handlers.RewardsHandler{}
	lambda.Start(h.Handle)
}
