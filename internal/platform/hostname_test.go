package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeHostname(t *testing.T) {
	assert.Equal(t, "shop.example.com", NormalizeHostname("  Shop.Example.COM. "))
}

func TestValidateHostname(t *testing.T) {
	tests := []struct {
		host    string
		wantErr string
	}{
		{"shop.example.com", ""},
		{"example.co.uk", ""},
		{"a-b.example.com", ""},
		{"", "must not be empty"},
		{"localhost", "at least two labels"},
		{"*.example.com", "invalid label"},
		{"-bad.example.com", "invalid label"},
		{"under_score.example.com", "invalid label"},
		{"shop..example.com", "invalid label"},
		{"10.0.0.1", "IP address"},
		{"shop.example.com:443", "invalid label"},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			err := ValidateHostname(tt.host)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestIsApex(t *testing.T) {
	assert.True(t, IsApex("example.com"))
	assert.True(t, IsApex("example.co.uk"))
	assert.False(t, IsApex("shop.example.com"))
	assert.False(t, IsApex("www.example.co.uk"))
}

func TestIsUnderBase(t *testing.T) {
	assert.True(t, IsUnderBase("platform.io", "platform.io"))
	assert.True(t, IsUnderBase("x.shops.platform.io", "platform.io"))
	assert.False(t, IsUnderBase("evilplatform.io", "platform.io"))
}

func TestRouteID(t *testing.T) {
	assert.Equal(t, "route_shop_example_com", RouteID("shop.example.com"))
	assert.Equal(t, "route_my-shop_example_com", RouteID("my-shop.example.com"))
	assert.NotEqual(t, RouteID("my-shop.example.com"), RouteID("my.shop.example.com"))
}

func TestVerifyNames(t *testing.T) {
	assert.Equal(t, "_acme-verify.shop.example.com", VerifyTXTName("acme", "shop.example.com"))
	assert.Equal(t, "/.well-known/acme-verify.txt", VerifyFilePath("acme"))
}

func TestSubdomainFQDN(t *testing.T) {
	assert.Equal(t, "myshop.shops", SubdomainRelative("myshop", "shops"))
	assert.Equal(t, "myshop.shops.example.com", SubdomainFQDN("myshop", "shops", "example.com"))
}

func TestValidateSlug(t *testing.T) {
	assert.NoError(t, ValidateSlug("myshop"))
	assert.NoError(t, ValidateSlug("my-shop-2"))
	assert.Error(t, ValidateSlug(""))
	assert.Error(t, ValidateSlug("-shop"))
	assert.Error(t, ValidateSlug("My.Shop"))
	assert.Error(t, ValidateSlug("my_shop"))
}
