package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
	"time"

	"topup_service/internal/middleware"
	"topup_service/internal/order"
	"topup_service/internal/payment"
	"topup_service/pkg/client"
)

// Result 记录单次回调的 HTTP 结果，便于聚合统计。
type Result struct {
	Status int
	Body   string
	Err    error
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	authSecret := flag.String("auth-secret", os.Getenv("AUTH_SECRET"), "AUTH_SECRET of the server, used to sign a member token (defaults to $AUTH_SECRET)")
	userID := flag.Int64("user", 1001, "member user id owning the test order")
	vendor := flag.String("vendor", "midtrans", "callback vendor: midtrans or dana")
	vendorKey := flag.String("key", "", "vendor signing secret (MIDTRANS_SERVER_KEY or DANA_SECRET_KEY)")
	prefix := flag.String("prefix", payment.DefaultPrefix, "order reference prefix")
	statuses := flag.String("statuses", "settlement,expire", "comma separated vendor statuses replayed round-robin")
	total := flag.Int("n", 20, "callbacks to send")
	concurrency := flag.Int("c", 10, "max concurrency")
	orderID := flag.Uint("order", 0, "existing order id; 0 creates a new order")
	interval := flag.Duration("interval", time.Second, "status poll interval")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	flag.Parse()
	if *authSecret == "" {
		fail("-auth-secret or AUTH_SECRET is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	token, err := middleware.SignToken(*authSecret, order.Caller{UserID: *userID, Username: "callbacksim"}, time.Hour)
	if err != nil {
		fail("sign token: %v", err)
	}
	c := client.New(*baseURL, token, nil)

	id := *orderID
	if id == 0 {
		id, err = c.CreateOrder(ctx, map[string]any{
			"amount":      80,
			"price":       15000,
			"discount":    0,
			"finalAmount": 15000,
			"topupMethod": "gamepass",
		}, false)
		if err != nil {
			fail("create order: %v", err)
		}
		fmt.Println("created order", id)
	}

	refs := payment.NewReferences(*prefix)
	ref := refs.Build(id, time.Now())
	list := splitStatuses(*statuses)
	if len(list) == 0 {
		fail("no statuses given")
	}

	fmt.Printf("start callback replay: vendor=%s order=%d ref=%s n=%d concurrency=%d\n", *vendor, id, ref, *total, *concurrency)
	results := runCallbacks(ctx, c, payment.Vendor(*vendor), *vendorKey, ref, list, *total, *concurrency)
	printSummary("callbacks", results)

	final, err := c.PollUntilTerminal(ctx, id, *interval, func(st client.OrderStatus, err error) {
		if err != nil {
			fmt.Println("poll error:", err)
			return
		}
		fmt.Printf("poll: paymentStatus=%s orderStatus=%s\n", st.PaymentStatus, st.OrderStatus)
	})
	if err != nil {
		fail("order %d did not reach a terminal state: %v (last %s/%s)", id, err, final.PaymentStatus, final.OrderStatus)
	}
	fmt.Printf("final: paymentStatus=%s orderStatus=%s\n", final.PaymentStatus, final.OrderStatus)
}

func runCallbacks(ctx context.Context, c *client.Client, vendor payment.Vendor, key, ref string, statuses []string, total, concurrency int) []Result {
	sem := make(chan struct{}, max(concurrency, 1))
	var wg sync.WaitGroup
	results := make([]Result, total)

	for i := 0; i < total; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			path, body := callbackPayload(vendor, key, ref, statuses[idx%len(statuses)])
			status, b, err := c.PostRaw(ctx, path, body)
			results[idx] = Result{Status: status, Body: string(b), Err: err}
		}(i)
	}

	wg.Wait()
	return results
}

// callbackPayload 构造带签名的网关回调报文。
func callbackPayload(vendor payment.Vendor, key, ref, status string) (string, []byte) {
	const amount = "15000"
	if vendor == payment.VendorDana {
		paymentID := fmt.Sprintf("SIM-%d", rand.IntN(1_000_000))
		b, _ := json.Marshal(map[string]any{
			"orderId":   ref,
			"paymentId": paymentID,
			"status":    status,
			"amount":    json.Number(amount),
			"signature": payment.DanaCallbackSignature(ref, paymentID, status, amount, key),
		})
		return "/api/payment/callback", b
	}
	gross := amount + ".00"
	b, _ := json.Marshal(map[string]any{
		"order_id":           ref,
		"transaction_status": status,
		"fraud_status":       "accept",
		"status_code":        "200",
		"gross_amount":       gross,
		"signature_key":      payment.MidtransSignature(ref, "200", gross, key),
	})
	return "/api/payment/webhook", b
}

// printSummary 聚合输出不同状态码分布。
func printSummary(name string, results []Result) {
	count := map[int]int{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		count[r.Status]++
	}
	fmt.Printf("[%s] http status summary:\n", name)
	for _, code := range []int{200, 400, 404, 429, 500} {
		if count[code] > 0 {
			fmt.Printf("  %d -> %d\n", code, count[code])
		}
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
}

func splitStatuses(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
