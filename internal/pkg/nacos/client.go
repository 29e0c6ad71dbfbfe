// internal/pkg/nacos/client.go
package nacos

import (
	"context"
	"net"
	"strconv"
	"strings"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/naming_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
)

const (
	defaultGroup  = "DEFAULT_GROUP"
	defaultWeight = 10

	// MetadataInstanceID 写入实例元数据，便于在控制台对应到日志中的实例
	MetadataInstanceID = "instanceId"
)

// Client 封装了 Nacos 命名客户端，负责服务注册与发现。
type Client struct {
	naming naming_client.INamingClient
	group  string
}

// Instance 描述本进程注册到 Nacos 的实例
type Instance struct {
	Service    string
	IP         string
	Port       int
	InstanceID string
}

// ParseServerConfigs 解析 "ip1:port1,ip2:port2" 格式的地址列表。
func ParseServerConfigs(addrs string) ([]constant.ServerConfig, error) {
	var configs []constant.ServerConfig
	for _, addr := range strings.Split(addrs, ",") {
		host, portStr, err := net.SplitHostPort(strings.TrimSpace(addr))
		if err != nil || host == "" {
			return nil, errors.Errorf("invalid nacos address %q", addr)
		}
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid port in nacos address %q", addr)
		}
		configs = append(configs, *constant.NewServerConfig(host, port))
	}
	return configs, nil
}

// NewNacosClient 创建命名客户端。group 为空时使用 DEFAULT_GROUP。
func NewNacosClient(addrs, namespaceID, group string) (*Client, error) {
	if group == "" {
		group = defaultGroup
	}
	serverConfigs, err := ParseServerConfigs(addrs)
	if err != nil {
		return nil, err
	}

	clientConfig := constant.NewClientConfig(
		constant.WithNotLoadCacheAtStart(true),
		constant.WithLogDir("/tmp/nacos/log"),
		constant.WithCacheDir("/tmp/nacos/cache"),
		constant.WithLogLevel("warn"),
		constant.WithNamespaceId(namespaceID),
	)
	naming, err := clients.NewNamingClient(vo.NacosClientParam{
		ClientConfig:  clientConfig,
		ServerConfigs: serverConfigs,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create nacos naming client")
	}

	zlog.Info().Str("addrs", addrs).Str("namespace", namespaceID).Str("group", group).Msg("Connected to Nacos")
	return &Client{naming: naming, group: group}, nil
}

// Register 注册临时实例，心跳断开后自动摘除。
func (c *Client) Register(inst Instance) error {
	ok, err := c.naming.RegisterInstance(vo.RegisterInstanceParam{
		Ip:          inst.IP,
		Port:        uint64(inst.Port),
		ServiceName: inst.Service,
		GroupName:   c.group,
		Weight:      defaultWeight,
		Enable:      true,
		Healthy:     true,
		Ephemeral:   true,
		Metadata:    map[string]string{MetadataInstanceID: inst.InstanceID},
	})
	if err != nil {
		return errors.Wrapf(err, "register %s with nacos", inst.Service)
	}
	if !ok {
		return errors.Errorf("nacos rejected registration of %s", inst.Service)
	}
	zlog.Info().
		Str("instance_id", inst.InstanceID).
		Str("addr", net.JoinHostPort(inst.IP, strconv.Itoa(inst.Port))).
		Msgf("Service '%s' registered to Nacos", inst.Service)
	return nil
}

// Deregister 注销实例。
func (c *Client) Deregister(inst Instance) error {
	if _, err := c.naming.DeregisterInstance(vo.DeregisterInstanceParam{
		Ip:          inst.IP,
		Port:        uint64(inst.Port),
		ServiceName: inst.Service,
		GroupName:   c.group,
		Ephemeral:   true,
	}); err != nil {
		return errors.Wrapf(err, "deregister %s from nacos", inst.Service)
	}
	zlog.Info().Str("instance_id", inst.InstanceID).Msgf("Service '%s' deregistered from Nacos", inst.Service)
	return nil
}

// Resolve 实现 httpclient.Resolver：按权重选择一个健康实例并返回其 base URL。
func (c *Client) Resolve(ctx context.Context, serviceName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	instance, err := c.naming.SelectOneHealthyInstance(vo.SelectOneHealthInstanceParam{
		ServiceName: serviceName,
		GroupName:   c.group,
	})
	if err != nil {
		return "", errors.Wrapf(err, "discover healthy instance of %s", serviceName)
	}
	if instance == nil {
		return "", errors.Errorf("no healthy instance available for %s", serviceName)
	}
	return "http://" + net.JoinHostPort(instance.Ip, strconv.FormatUint(instance.Port, 10)), nil
}

// Close 关闭命名客户端。
func (c *Client) Close() {
	if c.naming != nil {
		c.naming.CloseClient()
	}
}
