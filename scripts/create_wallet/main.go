package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"hashfund/internal/escrow"
	"hashfund/pkg/hedera"
)

// Creates a funded account on the configured network, optionally with a
// project token treasuried by the new account. Prints the account id
// and keys; the private key is shown once and never stored.
func main() {
	initialHbar := flag.Int64("hbar", 10, "initial balance in whole HBAR")
	tokenName := flag.String("token-name", "", "create a project token with this name")
	tokenSymbol := flag.String("token-symbol", "", "symbol for the project token")
	flag.Parse()

	client, err := hedera.NewClientFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "settlement client:", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx := context.Background()

	wallet, err := client.CreateAccount(ctx, *initialHbar)
	if err != nil {
		fmt.Fprintln(os.Stderr, "create account:", err)
		os.Exit(1)
	}

	fmt.Println("Account ID:  ", wallet.AccountID)
	fmt.Println("Public key:  ", wallet.PublicKey)
	fmt.Println("Private key: ", wallet.PrivateKey)

	if *tokenName != "" {
		if *tokenSymbol == "" {
			fmt.Fprintln(os.Stderr, "token-symbol required with token-name")
			os.Exit(1)
		}
		creator := escrow.Account{ID: wallet.AccountID, Key: wallet.PrivateKey}
		tokenID, treasury, err := client.CreateProjectToken(ctx, creator, *tokenName, *tokenSymbol)
		if err != nil {
			fmt.Fprintln(os.Stderr, "create token:", err)
			os.Exit(1)
		}
		fmt.Println("Token ID:    ", tokenID)
		fmt.Println("Treasury:    ", treasury)
	}
}
