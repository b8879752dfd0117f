// Package platforms 汇总内置厂商插件
package platforms

import (
	"github.com/netdriver/netdriver/addone/interact"
	"github.com/netdriver/netdriver/addone/interact/platforms/arista"
	"github.com/netdriver/netdriver/addone/interact/platforms/cisco"
	"github.com/netdriver/netdriver/addone/interact/platforms/dptech"
	"github.com/netdriver/netdriver/addone/interact/platforms/fortinet"
	"github.com/netdriver/netdriver/addone/interact/platforms/h3c"
	"github.com/netdriver/netdriver/addone/interact/platforms/hillstone"
	"github.com/netdriver/netdriver/addone/interact/platforms/huawei"
	"github.com/netdriver/netdriver/addone/interact/platforms/juniper"
	"github.com/netdriver/netdriver/addone/interact/platforms/maipu"
	"github.com/netdriver/netdriver/addone/interact/platforms/paloalto"
	"github.com/netdriver/netdriver/addone/interact/platforms/topsec"
)

// Factories 全部内置插件的构造列表，顺序即同一 vendor/model 下的候选顺序
func Factories() []interact.Factory {
	var out []interact.Factory
	for _, group := range [][]interact.Factory{
		cisco.Factories(),
		huawei.Factories(),
		h3c.Factories(),
		juniper.Factories(),
		paloalto.Factories(),
		fortinet.Factories(),
		arista.Factories(),
		hillstone.Factories(),
		maipu.Factories(),
		dptech.Factories(),
		topsec.Factories(),
	} {
		out = append(out, group...)
	}
	return out
}

// NewRegistry 创建并加载全部内置插件的注册中心
func NewRegistry() *interact.Registry {
	r := interact.NewRegistry()
	r.Load(Factories()...)
	return r
}
