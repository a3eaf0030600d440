package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"color_shop/internal/auth"
	"color_shop/internal/model"

	"github.com/go-resty/resty/v2"
)

// Result 记录单次请求的 HTTP 结果，便于聚合统计。
type Result struct {
	Status int
	Err    error
}

type userResp struct {
	Data  model.User `json:"data"`
	Token string     `json:"token"`
}

type productResp struct {
	Data model.Product `json:"data"`
}

type productListResp struct {
	Data []model.Product `json:"data"`
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "JWT secret used by the server")
	adminID := flag.Uint("admin-id", 1, "user id placed in the admin token")
	stock := flag.Int("stock", 10, "variant stock to sell")

	// 超卖测试：200 个用户并发抢 stock 件
	nUsers := flag.Int("users", 200, "distinct users")
	concurrency := flag.Int("c", 50, "max concurrency")
	burst := flag.Int("burst", 50, "requests from one user for the rate limit test")
	flag.Parse()

	if *secret == "" {
		fmt.Println("JWT secret is required (-secret or JWT_SECRET)")
		os.Exit(1)
	}

	signer := auth.NewSigner(*secret, time.Hour)
	adminTok, err := signer.Issue(auth.Identity{UserID: uint(*adminID), Role: model.RoleAdmin})
	if err != nil {
		panic(err)
	}

	client := resty.New().
		SetBaseURL(*baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json")

	product, err := seedProduct(client, adminTok, *stock)
	if err != nil {
		panic(fmt.Sprintf("seed product failed: %v", err))
	}
	variant := product.Variants[0]
	fmt.Printf("seeded product=%d variant=%d stock=%d\n", product.ID, variant.ID, *stock)

	tokens, err := seedUsers(client, adminTok, *nUsers)
	if err != nil {
		panic(fmt.Sprintf("seed users failed: %v", err))
	}

	// 1) 不超卖：不同用户并发下单同一规格
	fmt.Printf("start oversell test: users=%d concurrency=%d\n", len(tokens), *concurrency)
	results := runOrders(client, tokens, product.ID, variant.ID, *concurrency)
	printSummary("oversell", results)

	left, err := variantStock(client, product.ID, variant.ID)
	if err != nil {
		fmt.Println("stock check err:", err)
	} else {
		created := countStatus(results, http.StatusCreated)
		fmt.Printf("final stock: %d, created orders: %d\n", left, created)
		if left < 0 || created+left != *stock {
			fmt.Println("OVERSOLD: created + remaining != initial stock")
			os.Exit(2)
		}
	}

	// 2) 限流：同一用户连续下单，超出窗口上限后应出现 429
	if len(tokens) > 0 && *burst > 0 {
		fmt.Printf("\nstart rate limit test: same user, %d requests\n", *burst)
		same := make([]string, *burst)
		for i := range same {
			same[i] = tokens[0]
		}
		printSummary("rate_limit", runOrders(client, same, product.ID, 0, *burst))
	}
}

func seedProduct(client *resty.Client, adminTok string, stock int) (model.Product, error) {
	var out productResp
	resp, err := client.R().
		SetAuthToken(adminTok).
		SetBody(map[string]any{
			"name":  fmt.Sprintf("Loadtest Panel %d", time.Now().Unix()),
			"price": "25.00",
			"variants": []map[string]any{
				{"name": "2440x1220", "priceAdjustment": "5", "stockQuantity": stock},
			},
		}).
		SetResult(&out).
		Post("/api/products")
	if err != nil {
		return model.Product{}, err
	}
	if resp.StatusCode() != http.StatusCreated {
		return model.Product{}, fmt.Errorf("status=%d body=%s", resp.StatusCode(), resp.String())
	}
	if len(out.Data.Variants) == 0 {
		return model.Product{}, fmt.Errorf("product created without variants")
	}
	return out.Data, nil
}

func seedUsers(client *resty.Client, adminTok string, n int) ([]string, error) {
	run := time.Now().UnixNano()
	tokens := make([]string, 0, n)
	for i := 0; i < n; i++ {
		var out userResp
		resp, err := client.R().
			SetAuthToken(adminTok).
			SetBody(map[string]any{"email": fmt.Sprintf("load-%d-%d@example.com", run, i)}).
			SetResult(&out).
			Post("/api/users")
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() != http.StatusCreated {
			return nil, fmt.Errorf("status=%d body=%s", resp.StatusCode(), resp.String())
		}
		tokens = append(tokens, out.Token)
	}
	return tokens, nil
}

// runOrders 每个 token 下一单；variantID 为 0 时按商品本身下单。
func runOrders(client *resty.Client, tokens []string, productID, variantID uint, concurrency int) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, len(tokens))

	line := map[string]any{"productId": productID, "quantity": 1}
	if variantID > 0 {
		line["variantId"] = variantID
	}
	body := map[string]any{
		"items":           []any{line},
		"shippingAddress": map[string]any{"line1": "1 Loadtest Rd", "city": "Hanoi"},
	}

	for i, tok := range tokens {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, tok string) {
			defer wg.Done()
			defer func() { <-sem }()

			resp, err := client.R().SetAuthToken(tok).SetBody(body).Post("/api/orders")
			if err != nil {
				results[idx] = Result{Err: err}
				return
			}
			results[idx] = Result{Status: resp.StatusCode()}
		}(i, tok)
	}

	wg.Wait()
	return results
}

// variantStock 从商品列表读取规格剩余库存，用于校验是否超卖。
func variantStock(client *resty.Client, productID, variantID uint) (int, error) {
	var out productListResp
	resp, err := client.R().SetResult(&out).Get("/api/products")
	if err != nil {
		return 0, err
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("status=%d body=%s", resp.StatusCode(), resp.String())
	}
	for _, p := range out.Data {
		if p.ID != productID {
			continue
		}
		for _, v := range p.Variants {
			if v.ID == variantID && v.StockQuantity != nil {
				return *v.StockQuantity, nil
			}
		}
	}
	return 0, fmt.Errorf("variant %d not found", variantID)
}

func countStatus(results []Result, status int) int {
	n := 0
	for _, r := range results {
		if r.Err == nil && r.Status == status {
			n++
		}
	}
	return n
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
	for _, code := range []int{200, 201, 400, 401, 404, 409, 429, 500} {
		if count[code] > 0 {
			fmt.Printf("  %d -> %d\n", code, count[code])
		}
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
}
