package authz

import (
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthzServiceTest(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	return svc
}

func TestEnforceRoleMatchesRoutePattern(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	role, err := svc.EnsureRole("editor")
	if err != nil {
		t.Fatalf("ensure role failed: %v", err)
	}
	if role != "role:editor" {
		t.Fatalf("unexpected role subject: %s", role)
	}
	if _, err := svc.enforcer.AddPolicy(role, NormalizeObject("/api/v1/products/:id"), "PUT"); err != nil {
		t.Fatalf("add policy failed: %v", err)
	}

	allow, err := svc.EnforceRole("editor", "/api/v1/products/42", "put")
	if err != nil {
		t.Fatalf("enforce allow failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected allow=true")
	}

	allow, err = svc.EnforceRole("editor", "/api/v1/products/42", "DELETE")
	if err != nil {
		t.Fatalf("enforce deny failed: %v", err)
	}
	if allow {
		t.Fatalf("expected allow=false")
	}

	allow, err = svc.EnforceRole("Editor", "/api/v1/products", "PUT")
	if err != nil {
		t.Fatalf("enforce collection failed: %v", err)
	}
	if allow {
		t.Fatalf("item policy must not cover the collection route")
	}
}

func TestEnsureRoleIsIdempotent(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	for i := 0; i < 2; i++ {
		if _, err := svc.EnsureRole("user"); err != nil {
			t.Fatalf("ensure role #%d failed: %v", i, err)
		}
	}
	rules, err := svc.enforcer.GetFilteredNamedGroupingPolicy("g", 0, "role:user")
	if err != nil {
		t.Fatalf("list grouping failed: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected one anchor rule, got %v", rules)
	}
	if _, err := svc.EnsureRole("__anchor__"); err == nil {
		t.Fatalf("reserved role should be rejected")
	}
}

func TestEnforceRoleRequiresRole(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if _, err := svc.EnforceRole(" ", "/products", "POST"); err == nil {
		t.Fatalf("empty role should be rejected")
	}
}

func TestNormalizeObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "/api/v1/products/:id", want: "/products/:id"},
		{in: "/products/:id", want: "/products/:id"},
		{in: "products", want: "/products"},
		{in: "/api/v1", want: "/"},
		{in: "", want: "/"},
	}
	for _, item := range cases {
		got := NormalizeObject(item.in)
		if got != item.want {
			t.Fatalf("normalize object failed, in=%q want=%q got=%q", item.in, item.want, got)
		}
	}
}

func TestBootstrapBuiltinRoles(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}
	// 重复执行不应报错
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("second bootstrap failed: %v", err)
	}

	for _, method := range []string{"POST", "PUT", "DELETE"} {
		allow, err := svc.EnforceRole("admin", "/api/v1/products/:id", method)
		if err != nil {
			t.Fatalf("enforce admin %s failed: %v", method, err)
		}
		if !allow {
			t.Fatalf("expected admin allowed to %s products", method)
		}
	}

	allow, err := svc.EnforceRole("user", "/api/v1/products", "POST")
	if err != nil {
		t.Fatalf("enforce user failed: %v", err)
	}
	if allow {
		t.Fatalf("standard user must not manage products")
	}

	allow, err = svc.EnforceRole("admin", "/api/v1/cart", "GET")
	if err != nil {
		t.Fatalf("enforce admin cart failed: %v", err)
	}
	if allow {
		t.Fatalf("admin policies should only cover product routes")
	}
}
