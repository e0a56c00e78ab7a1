package main

import (
	"fmt"
	"log"
	"os"

	"github.com/dghubble/oauth1"
	"github.com/dghubble/oauth1/twitter"
)

func main() {
	consumerKey := os.Getenv("TWITTER_CONSUMER_KEY")
	consumerSecret := os.Getenv("TWITTER_CONSUMER_SECRET")

	if consumerKey == "" || consumerSecret == "" {
		log.Fatal("Please set TWITTER_CONSUMER_KEY and TWITTER_CONSUMER_SECRET environment variables")
	}

	config := oauth1.Config{
		ConsumerKey:    consumerKey,
		ConsumerSecret: consumerSecret,
		CallbackURL:    "oob",
		Endpoint:       twitter.AuthorizeEndpoint,
	}

	requestToken, requestSecret, err := config.RequestToken()
	if err != nil {
		log.Fatalf("Unable to get request token: %v", err)
	}

	authURL, err := config.AuthorizationURL(requestToken)
	if err != nil {
		log.Fatalf("Unable to build authorization URL: %v", err)
	}
	fmt.Printf("Sign in as the account that will post outreach and open this link:\n%v\n", authURL.String())

	var pin string
	fmt.Print("\nEnter the PIN shown after authorizing: ")
	fmt.Scan(&pin)

	accessToken, accessSecret, err := config.AccessToken(requestToken, requestSecret, pin)
	if err != nil {
		log.Fatalf("Unable to retrieve access token: %v", err)
	}

	fmt.Println("\nAdd the access token to your environment variables:")
	fmt.Printf("export TWITTER_ACCESS_TOKEN=\"%s\"\n", accessToken)
	fmt.Printf("export TWITTER_ACCESS_TOKEN_SECRET=\"%s\"\n", accessSecret)
}
