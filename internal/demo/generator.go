package demo

import (
	"fmt"
	"math/rand"
	"time"
)

// User is one row for the users table. The is_active and is_dormant
// flags reproduce the legacy population: dormant users keep
// is_active = 1, and a user registered inside the dormancy window can
// carry recent activity despite the flag. Queries derive state from
// purchases, never from these flags.
type User struct {
	ID               int64
	Name             string
	Email            string
	RegistrationDate time.Time
	IsActive         bool
	IsDormant        bool
	IsCancelled      bool
	LastActivity     time.Time
}

// Purchase is one row for the purchases table.
type Purchase struct {
	ID         int64
	UserID     int64
	Amount     float64
	Date       time.Time
	CategoryID int64
}

type Dataset struct {
	Users     []User
	Purchases []Purchase
}

var firstNames = []string{
	"太郎", "次郎", "花子", "裕子", "健太", "直樹", "美咲", "真理", "和也", "拓也",
	"恵子", "幸子", "大輔", "翔太", "愛", "優子", "健", "陽子", "誠", "裕美",
}

var lastNames = []string{
	"佐藤", "鈴木", "高橋", "田中", "伊藤", "渡辺", "山本", "中村", "小林", "加藤",
	"吉田", "山田", "佐々木", "山口", "松本", "井上", "木村", "林", "斎藤", "清水",
}

// Romaji mirrors of the name lists keep email local parts ASCII. The
// user id in the local part guarantees uniqueness.
var firstNamesRomaji = []string{
	"taro", "jiro", "hanako", "yuko", "kenta", "naoki", "misaki", "mari", "kazuya", "takuya",
	"keiko", "sachiko", "daisuke", "shota", "ai", "yuko", "ken", "yoko", "makoto", "hiromi",
}

var lastNamesRomaji = []string{
	"sato", "suzuki", "takahashi", "tanaka", "ito", "watanabe", "yamamoto", "nakamura", "kobayashi", "kato",
	"yoshida", "yamada", "sasaki", "yamaguchi", "matsumoto", "inoue", "kimura", "hayashi", "saito", "shimizu",
}

var emailDomains = []string{
	"gmail.com", "yahoo.co.jp", "outlook.jp", "docomo.ne.jp", "ezweb.ne.jp",
	"softbank.ne.jp", "icloud.com", "hotmail.com", "example.com", "mail.com",
}

// Generator produces a deterministic demo population for a seed: 5% of
// users cancelled with no purchases, 15% dormant with few and old
// purchases, the rest active with 20 to 100 purchases weighted toward
// three preferred categories per user.
type Generator struct {
	rnd           *rand.Rand
	categoryCount int
	now           func() time.Time
}

func NewGenerator(seed int64, categoryCount int) *Generator {
	if categoryCount <= 0 {
		categoryCount = 11
	}
	return &Generator{
		rnd:           rand.New(rand.NewSource(seed)),
		categoryCount: categoryCount,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (g *Generator) Generate(userCount int) Dataset {
	end := g.now()
	historyStart := end.AddDate(0, 0, -365)
	registrationStart := historyStart.AddDate(0, 0, -730)

	dataset := Dataset{
		Users: make([]User, 0, userCount),
	}

	purchaseID := int64(1)
	for i := 1; i <= userCount; i++ {
		lastIdx := g.rnd.Intn(len(lastNames))
		firstIdx := g.rnd.Intn(len(firstNames))

		user := User{
			ID:               int64(i),
			Name:             lastNames[lastIdx] + " " + firstNames[firstIdx],
			Email:            fmt.Sprintf("%s.%s%d@%s", lastNamesRomaji[lastIdx], firstNamesRomaji[firstIdx], i, pickOne(g.rnd, emailDomains)),
			RegistrationDate: g.randomDate(registrationStart, end),
			IsActive:         true,
		}

		switch {
		case g.rnd.Float64() < 0.05:
			user.IsActive = false
			user.IsCancelled = true
			user.LastActivity = g.randomDate(user.RegistrationDate, end)
		case g.rnd.Float64() < 0.15:
			user.IsDormant = true
			user.LastActivity = g.randomDate(user.RegistrationDate, end.AddDate(0, 0, -90))
		default:
			user.LastActivity = g.randomDate(laterOf(user.RegistrationDate, end.AddDate(0, 0, -30)), end)
		}

		dataset.Users = append(dataset.Users, user)
		dataset.Purchases = append(dataset.Purchases, g.purchasesFor(user, historyStart, end, &purchaseID)...)
	}

	return dataset
}

func (g *Generator) purchasesFor(user User, historyStart, end time.Time, nextID *int64) []Purchase {
	if user.IsCancelled {
		return nil
	}

	var count int
	purchaseEnd := end
	if user.IsDormant {
		count = 1 + g.rnd.Intn(20)
		purchaseEnd = user.LastActivity
	} else {
		count = 20 + g.rnd.Intn(81)
	}

	preferred := g.preferredCategories()
	purchaseStart := laterOf(user.RegistrationDate, historyStart)

	purchases := make([]Purchase, 0, count)
	for i := 0; i < count; i++ {
		var categoryID int64
		if g.rnd.Float64() < 0.7 {
			categoryID = preferred[g.rnd.Intn(len(preferred))]
		} else {
			categoryID = int64(1 + g.rnd.Intn(g.categoryCount))
		}

		purchases = append(purchases, Purchase{
			ID:         *nextID,
			UserID:     user.ID,
			Amount:     g.randomAmount(),
			Date:       g.randomDate(purchaseStart, purchaseEnd),
			CategoryID: categoryID,
		})
		*nextID++
	}
	return purchases
}

// preferredCategories picks three distinct categories for one user.
func (g *Generator) preferredCategories() []int64 {
	perm := g.rnd.Perm(g.categoryCount)
	preferred := make([]int64, 3)
	for i := range preferred {
		preferred[i] = int64(perm[i] + 1)
	}
	return preferred
}

// randomAmount returns 100 to 50,000 yen in steps of 100, with a 10%
// chance of a five to ten times larger purchase.
func (g *Generator) randomAmount() float64 {
	base := 1 + g.rnd.Intn(500)
	if g.rnd.Float64() < 0.1 {
		base *= 5 + g.rnd.Intn(6)
	}
	return float64(base * 100)
}

// randomDate picks a day in [start, end). A start on or after end
// returns start, so a freshly registered user never gets activity
// before registration.
func (g *Generator) randomDate(start, end time.Time) time.Time {
	days := int(end.Sub(start).Hours() / 24)
	if days <= 0 {
		return start
	}
	return start.AddDate(0, 0, g.rnd.Intn(days))
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
